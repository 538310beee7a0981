package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Base36 alphabet used for the split digit of unit codes
const SmartBase32Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ==========================================
// UNIT CODE ('i')
// Format: i [SplitChar] [IMEI...] [Ref...]
// SplitChar: base36 digit giving the length of the Ref suffix.
// Example: "i4" + "356938035643809" + "S23U" is IMEI 356938035643809,
// product ref S23U. Split '0' means no ref.
// ==========================================

// UnitCode is a decoded unit label.
type UnitCode struct {
	IMEI string
	Ref  string
}

var errInvalidUnitCode = errors.New("invalid unit code")

// DecodeUnitCode parses a unit label.
func DecodeUnitCode(code string) (*UnitCode, error) {
	if len(code) < 3 || !strings.HasPrefix(code, "i") {
		return nil, errInvalidUnitCode
	}
	code = strings.ToUpper(code)

	suffixLen := strings.IndexByte(SmartBase32Chars, code[1])
	if suffixLen < 0 {
		return nil, errInvalidUnitCode
	}
	dataPart := code[2:]
	if len(dataPart) <= suffixLen {
		return nil, errors.New("code too short for specified split length")
	}

	splitIdx := len(dataPart) - suffixLen
	return &UnitCode{
		IMEI: dataPart[:splitIdx],
		Ref:  dataPart[splitIdx:],
	}, nil
}

// EncodeUnitCode builds the label payload for a unit. Ref longer than 35
// characters is truncated.
func EncodeUnitCode(imei, ref string) string {
	if len(ref) > len(SmartBase32Chars)-1 {
		ref = ref[:len(SmartBase32Chars)-1]
	}
	return fmt.Sprintf("i%c%s%s", SmartBase32Chars[len(ref)], imei, strings.ToUpper(ref))
}

// IMEI length bounds: 14 digits without the check digit, 16 for IMEISV.
const (
	minIMEIDigits = 14
	maxIMEIDigits = 16
)

// ScanIdentifier turns raw scanner input into the unit identifier: a unit
// label yields its IMEI, anything else is used as typed.
func ScanIdentifier(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "i") {
		if c, err := DecodeUnitCode(raw); err == nil && isIMEI(c.IMEI) {
			return c.IMEI
		}
	}
	return raw
}

func isIMEI(s string) bool {
	if len(s) < minIMEIDigits || len(s) > maxIMEIDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
