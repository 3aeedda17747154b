package billing

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"50.00", 5000, false},
		{"50", 5000, false},
		{"0.01", 1, false},
		{"1234.56", 123456, false},
		{"50.5", 5050, false},
		{"50.005", 0, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{"-10.00", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error, got %d", tt.in, got)
			} else if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseAmount(%q) error is not ErrInvalidInput: %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{5000, "50.00"},
		{1, "0.01"},
		{0, "0.00"},
		{123456, "1234.56"},
	}
	for _, tt := range tests {
		if got := FormatCents(tt.in); got != tt.want {
			t.Errorf("FormatCents(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestItemTotalExact(t *testing.T) {
	// 3 × 0.10 must be exactly 0.30; no float arithmetic anywhere.
	if got := ItemTotal(3, 10); got != 30 {
		t.Errorf("ItemTotal(3, 10) = %d, want 30", got)
	}
	if got := ItemTotal(7, 333); got != 2331 {
		t.Errorf("ItemTotal(7, 333) = %d, want 2331", got)
	}
}
