// Package barcode canonicalizes raw scanned or typed text into a validated
// product code. Codes that look like EAN-13 are admitted even when the check
// digit does not verify ("admit-on-mismatch"): operational catalogs store
// 13-digit strings that never had a check-digit relationship, so the computed
// digit is a quality signal, not a gate.
package barcode

import (
	"regexp"
	"strings"

	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"golang.org/x/text/width"
)

// Channel identifies how a raw scan entered the system.
type Channel string

const (
	ChannelManual      Channel = "manual"
	ChannelCameraLive  Channel = "camera-live"
	ChannelCameraStill Channel = "camera-still"
	ChannelImageFile   Channel = "image-file"
)

// Shape classifies a normalized code.
type Shape string

const (
	ShapeEAN13        Shape = "ean13"
	ShapeAlphanumeric Shape = "alphanumeric"
)

// Code is the result of a successful normalization pass.
type Code struct {
	Value string
	Shape Shape

	// CheckDigitOK reports whether the supplied check digit matched the
	// computed one. Only meaningful for ShapeEAN13; a false value does not
	// invalidate the code.
	CheckDigitOK bool
}

func (c Code) String() string { return c.Value }

var (
	nonDigits    = regexp.MustCompile(`\D+`)
	twelveDigits = regexp.MustCompile(`^\d{12}$`)
	alphanumeric = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)
)

// Normalize canonicalizes raw input into a Code. Twelve-digit bodies are
// treated as UPC-A and widened to EAN-13 with a leading zero; thirteen-digit
// bodies are accepted as-is. Anything else falls back to the alphanumeric
// shape (4-64 chars of [A-Za-z0-9-_.]) applied to the original trimmed
// string, upper-cased. Inputs matching none of the shapes fail validation.
func Normalize(raw string) (Code, error) {
	canonical := strings.TrimSpace(width.Fold.String(raw))
	if canonical == "" {
		return Code{}, pkgerrors.New(pkgerrors.CodeValidation, "empty barcode input")
	}

	digits := nonDigits.ReplaceAllString(canonical, "")
	switch len(digits) {
	case 12:
		ean := "0" + digits
		check, err := ComputeCheckDigit(ean[:12])
		if err != nil {
			return Code{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "check digit")
		}
		return Code{
			Value:        ean,
			Shape:        ShapeEAN13,
			CheckDigitOK: byte('0'+check) == ean[12],
		}, nil
	case 13:
		check, err := ComputeCheckDigit(digits[:12])
		if err != nil {
			return Code{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "check digit")
		}
		return Code{
			Value:        digits,
			Shape:        ShapeEAN13,
			CheckDigitOK: byte('0'+check) == digits[12],
		}, nil
	}

	// Not a retail digit code; Code39/Code128/ITF and in-house codes take
	// the alphanumeric path against the original canonicalized string.
	if len(canonical) >= 4 && len(canonical) <= 64 && alphanumeric.MatchString(canonical) {
		return Code{Value: strings.ToUpper(canonical), Shape: ShapeAlphanumeric}, nil
	}

	return Code{}, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized barcode shape").
		WithDetails(map[string]any{"length": len(canonical)})
}

// ComputeCheckDigit computes the EAN-13 parity digit over a 12-digit body.
// Non-12-digit input is a programming error, distinct from the runtime
// admit-on-mismatch policy, and is rejected outright.
func ComputeCheckDigit(d12 string) (int, error) {
	if !twelveDigits.MatchString(d12) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "check digit body must be exactly 12 digits")
	}
	sumOdd, sumEven := 0, 0
	for i := 0; i < 12; i++ {
		n := int(d12[i] - '0')
		if (i+1)%2 == 1 {
			sumOdd += n
		} else {
			sumEven += n
		}
	}
	return (10 - (sumOdd+sumEven*3)%10) % 10, nil
}

// ValidateEAN13 reports whether the supplied 13-digit code carries a
// consistent check digit. Informational only; Normalize never rejects on a
// mismatch.
func ValidateEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}
	check, err := ComputeCheckDigit(code[:12])
	if err != nil {
		return false
	}
	return byte('0'+check) == code[12]
}
