package barcode

import (
	"testing"

	"github.com/scanops/scanstock/internal/core/domain"
)

func TestDecode_UPC(t *testing.T) {
	// Valid UPC-A with correct check digit
	decoded := Decode("036000291452")
	if decoded.Format != domain.FormatUPC {
		t.Errorf("expected UPC, got %s", decoded.Format)
	}
	if !decoded.Valid {
		t.Error("expected valid checksum")
	}
	if decoded.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", decoded.Confidence)
	}
}

func TestDecode_UPC_BadCheckDigit(t *testing.T) {
	// Same code with the last digit flipped: format preserved, invalid
	decoded := Decode("036000291453")
	if decoded.Format != domain.FormatUPC {
		t.Errorf("expected UPC, got %s", decoded.Format)
	}
	if decoded.Valid {
		t.Error("expected invalid checksum")
	}
	if decoded.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %f", decoded.Confidence)
	}
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		format domain.BarcodeFormat
		valid  bool
	}{
		{"EAN-13 valid", "4006381333931", domain.FormatEAN, true},
		{"EAN-13 bad check digit", "4006381333932", domain.FormatEAN, false},
		{"UPC with separators", "0360-0029-1452", domain.FormatUPC, true},
		{"11 digits padded to UPC", "36000291452", domain.FormatUPC, true},
		{"CODE128 alphanumeric", "ABC-123456", domain.FormatCode128, true},
		{"CODE128 lowercase", "abc123", domain.FormatCode128, true},
		{"QR URL payload", "https://example.com/p?id=42", domain.FormatQR, true},
		{"empty", "", domain.FormatUnknown, false},
		{"whitespace only", "   ", domain.FormatUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := Decode(tt.raw)
			if decoded.Format != tt.format {
				t.Errorf("format: expected %s, got %s", tt.format, decoded.Format)
			}
			if decoded.Valid != tt.valid {
				t.Errorf("valid: expected %v, got %v", tt.valid, decoded.Valid)
			}
			if decoded.Raw != tt.raw {
				t.Errorf("raw input must be preserved, got %q", decoded.Raw)
			}
		})
	}
}

func TestDecode_NeverFails(t *testing.T) {
	// Garbage input is a data condition, not an error: Decode always
	// returns a value.
	for _, raw := range []string{"", "\x00\x01", "日本語", "!!!"} {
		decoded := Decode(raw)
		if decoded.Raw != raw {
			t.Errorf("raw mismatch for %q", raw)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"036000291452", "036000291452"},
		{"0360-0029-1452", "036000291452"},
		{" abc 123 ", "ABC123"},
		{"36000291452", "036000291452"}, // 11 digits padded
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"036000291452", "0360-0029-1452", "abc-123", "36000291452",
		"https://example.com/p?id=42", "", "   ", "ABC 123 $/+%",
	}
	for _, raw := range inputs {
		once := Normalize(raw)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", raw, once, twice)
		}
	}
}
