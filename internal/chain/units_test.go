package chain

import (
	"math/big"
	"testing"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0.1", "100000000000000000", false},
		{"1", "1000000000000000000", false},
		{".5", "500000000000000000", false},
		{"2.", "2000000000000000000", false},
		{"0.000000000000000001", "1", false},
		{"0.0000000000000000001", "", true},
		{"-1", "", true},
		{"abc", "", true},
		{"", "", true},
		{".", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEther(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEther(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("ParseEther(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "0.000000000000000001"},
		{"100000000000000000", "0.1"},
		{"1500000000000000000", "1.5"},
		{"-2000000000000000000", "-2"},
	}
	for _, tt := range tests {
		v, _ := new(big.Int).SetString(tt.in, 10)
		if got := FormatEther(v); got != tt.want {
			t.Errorf("FormatEther(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatEther(nil); got != "0" {
		t.Errorf("FormatEther(nil) = %q, want 0", got)
	}
}

func TestParseUnitsTokenDecimals(t *testing.T) {
	got, err := ParseUnits("2500000000", 18)
	if err != nil {
		t.Fatal(err)
	}
	if FormatUnits(got, 18) != "2500000000" {
		t.Errorf("round trip = %s", FormatUnits(got, 18))
	}
}
