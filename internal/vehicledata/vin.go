package vehicledata

import (
	"strings"

	apperrors "myautowhiz-backend/internal/errors"
)

// VINLength is the length of a modern (1981+) VIN.
const VINLength = 17

// NormalizeVIN uppercases raw and strips everything that is not a letter or digit.
func NormalizeVIN(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateVIN checks a normalized VIN. I, O and Q never appear in a VIN.
func ValidateVIN(vin string) error {
	if len(vin) != VINLength {
		return apperrors.Validation("VIN must be exactly 17 characters")
	}
	if strings.ContainsAny(vin, "IOQ") {
		return apperrors.Validation("VIN cannot contain the letters I, O, or Q")
	}
	return nil
}

// ParseVIN normalizes and validates raw in one step.
func ParseVIN(raw string) (string, error) {
	vin := NormalizeVIN(raw)
	if err := ValidateVIN(vin); err != nil {
		return "", err
	}
	return vin, nil
}
