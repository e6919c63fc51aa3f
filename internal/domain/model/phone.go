package model

import (
	"edupay-service/internal/domain"
)

// Cameroonian mobile numbers: local subscriber numbers are 9 digits starting
// with 6; the canonical form prefixes the 237 calling code for 12 digits total.
const (
	phoneCountryCode = "237"
	phoneLocalLen    = 9
	phoneFullLen     = 12
)

// NormalizePhone canonicalizes a subscriber number into the 12-digit
// 2376XXXXXXXX form accepted by the provider. It accepts the bare 9-digit
// local number or the already-prefixed 12-digit one; everything else fails
// with ErrInvalidPhoneFormat.
func NormalizePhone(raw string) (string, error) {
	if !digitsOnly(raw) {
		return "", domain.ErrInvalidPhoneFormat
	}
	switch len(raw) {
	case phoneLocalLen:
		if raw[0] != '6' {
			return "", domain.ErrInvalidPhoneFormat
		}
		return phoneCountryCode + raw, nil
	case phoneFullLen:
		if raw[:3] != phoneCountryCode || raw[3] != '6' {
			return "", domain.ErrInvalidPhoneFormat
		}
		return raw, nil
	}
	return "", domain.ErrInvalidPhoneFormat
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
