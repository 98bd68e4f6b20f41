// internal/provider/mpesa/phone.go
package mpesa

import (
	"strings"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

const (
	countryCode  = "254"
	trunkPrefix  = "0"
	mobilePrefix = "7"

	canonicalPhoneLength = 12
)

// NormalizePhone maps local and international phone input to the canonical
// 2547XXXXXXXX subscriber form. Spacing and punctuation are ignored.
func NormalizePhone(input string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)

	var phone string
	switch {
	case strings.HasPrefix(digits, countryCode):
		phone = digits
	case strings.HasPrefix(digits, trunkPrefix):
		phone = countryCode + strings.TrimPrefix(digits, trunkPrefix)
	case strings.HasPrefix(digits, mobilePrefix):
		phone = countryCode + digits
	default:
		phone = countryCode + digits
	}

	if len(phone) != canonicalPhoneLength || !strings.HasPrefix(phone, countryCode+mobilePrefix) {
		return "", &domain.InvalidPhoneNumberError{Input: input}
	}

	return phone, nil
}
