// Package phone normalises contact phone numbers for the WhatsApp API.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Digits returns the number as digits only, the form the Cloud API expects
// in the "to" field. International numbers that parse are formatted from
// their E.164 form; anything else has every non-digit stripped.
func Digits(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "+") {
		if number, err := phonenumbers.Parse(trimmed, ""); err == nil && phonenumbers.IsValidNumber(number) {
			return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
		}
	}

	return stripNonDigits(trimmed)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
