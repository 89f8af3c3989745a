package chain

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tidwall/gjson"
)

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// LoadArtifact reads a Hardhat or Foundry style artifact JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact parses artifact JSON. The bytecode is read from "bytecode"
// or, for Foundry output, "bytecode.object".
func ParseArtifact(data []byte) (*Artifact, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse artifact: invalid json")
	}
	doc := gjson.ParseBytes(data)

	abiRaw := doc.Get("abi")
	if !abiRaw.Exists() || !abiRaw.IsArray() {
		return nil, fmt.Errorf("parse artifact: abi missing")
	}
	parsed, err := abi.JSON(strings.NewReader(abiRaw.Raw))
	if err != nil {
		return nil, fmt.Errorf("parse artifact abi: %w", err)
	}

	code := doc.Get("bytecode")
	if code.IsObject() {
		code = code.Get("object")
	}
	hexCode := strings.TrimSpace(code.String())
	if hexCode == "" || hexCode == "0x" {
		return nil, fmt.Errorf("parse artifact: bytecode missing")
	}
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	bytecode, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("parse artifact bytecode: %w", err)
	}

	return &Artifact{
		Name:     doc.Get("contractName").String(),
		ABI:      parsed,
		Bytecode: bytecode,
	}, nil
}

// DeployData returns the creation bytecode followed by the packed
// constructor arguments.
func (a *Artifact) DeployData(args ...interface{}) ([]byte, error) {
	if a == nil || len(a.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode")
	}
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(a.Bytecode)
	buf.Write(packed)
	return buf.Bytes(), nil
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
