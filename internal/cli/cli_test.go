package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPrinterLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Success("deployed %s", "polygon")
	p.Error("failed")
	p.Warning("low balance")
	p.Info("checking")

	want := "✓ deployed polygon\n✗ failed\n⚠ low balance\nℹ checking\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinterKeyValues(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).KeyValues(map[string]string{"fee": "0.001", "bridge": "wormhole"})

	want := "  bridge: wormhole\n  fee:    0.001\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Table([]string{"BRIDGE", "STATUS"}, [][]string{
		{"polygon", "configured"},
		{"layerzero", "tested"},
	})

	out := buf.String()
	for _, want := range []string{"BRIDGE", "STATUS", "polygon", "configured"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	var row string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "layerzero") {
			row = line
		}
	}
	if !strings.Contains(row, "tested") {
		t.Errorf("layerzero row = %q, want status on the same line", row)
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, 4, "bridge").SetWidth(8)

	pb.Step("initiate")
	pb.Step("confirm")
	if pb.Current() != 2 {
		t.Errorf("Current() = %d, want 2", pb.Current())
	}
	if !strings.Contains(buf.String(), " 50% confirm") {
		t.Errorf("output %q missing 50%% confirm", buf.String())
	}

	pb.Finish()
	if pb.Current() != 4 {
		t.Errorf("Current() = %d, want 4", pb.Current())
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("Finish() should end the line")
	}
}

func TestSpinnerNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(NewPrinter(&buf, true), "working")
	s.Start()
	s.Success("done")

	if got := buf.String(); got != "✓ done\n" {
		t.Errorf("output = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "< 1s"},
		{42 * time.Second, "42s"},
		{125 * time.Second, "2m5s"},
		{2*time.Hour + 3*time.Minute, "2h3m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
