package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// EtherDecimals is the number of decimals of native EVM currencies.
const EtherDecimals = 18

// ParseUnits converts a decimal string such as "0.1" into base units with
// the given number of decimals. Fractions longer than decimals are rejected.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount required")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount %q must not be negative", amount)
	}
	amount = strings.TrimPrefix(amount, "+")

	whole, frac, hasDot := strings.Cut(amount, ".")
	if whole == "" && (!hasDot || frac == "") {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	frac += strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	s := new(big.Int).Abs(v).String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseEther converts a decimal amount of native currency to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// FormatEther converts wei to a decimal amount of native currency.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
