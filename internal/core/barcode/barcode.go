package barcode

import (
	"strings"
	"unicode"

	"github.com/scanops/scanstock/internal/core/domain"
)

// Normalize strips separator characters, upper-cases alphabetic payloads
// and left-pads an 11-digit numeric payload to canonical UPC-A length.
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		}
	}

	s := b.String()
	if len(s) == 11 && allDigits(s) {
		s = "0" + s
	}
	return s
}

// Decode classifies a raw scanned string. It never fails: unreadable
// input comes back as FormatUnknown with Valid=false, and a checksum
// mismatch keeps the classified format with Valid=false so callers can
// warn and proceed.
func Decode(raw string) domain.DecodedBarcode {
	trimmed := strings.TrimSpace(raw)
	decoded := domain.DecodedBarcode{
		Raw:        raw,
		Normalized: Normalize(trimmed),
		Format:     domain.FormatUnknown,
	}
	if trimmed == "" {
		return decoded
	}

	norm := decoded.Normalized
	switch {
	case len(norm) == 12 && allDigits(norm):
		decoded.Format = domain.FormatUPC
		decoded.Valid = checkDigitOK(norm)
	case len(norm) == 13 && allDigits(norm):
		decoded.Format = domain.FormatEAN
		decoded.Valid = checkDigitOK(norm)
	case isCode128(trimmed):
		decoded.Format = domain.FormatCode128
		decoded.Valid = true
		decoded.Confidence = 0.9
	case isPrintable(trimmed):
		// Structured payloads (URLs, JSON, anything outside the linear
		// symbologies) are treated as opaque QR content.
		decoded.Format = domain.FormatQR
		decoded.Valid = true
		decoded.Confidence = 1.0
	default:
		return decoded
	}

	if decoded.Format == domain.FormatUPC || decoded.Format == domain.FormatEAN {
		if decoded.Valid {
			decoded.Confidence = 1.0
		} else {
			decoded.Confidence = 0.5
		}
	}
	return decoded
}

// checkDigitOK validates the trailing mod-10 check digit. Weights run
// 3,1,3,... right to left from the digit before the check digit, which
// covers both UPC-A and EAN-13.
func checkDigitOK(code string) bool {
	sum := 0
	weight := 3
	for i := len(code) - 2; i >= 0; i-- {
		sum += int(code[i]-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}
	return (10-sum%10)%10 == int(code[len(code)-1]-'0')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// isCode128 reports whether every rune falls in the linear-symbology
// character subset (letters, digits and "-. $/+%").
func isCode128(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case strings.ContainsRune("-. $/+%", r):
		default:
			return false
		}
	}
	return len(s) > 0
}

func isPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsGraphic(r) {
			return false
		}
	}
	return true
}
