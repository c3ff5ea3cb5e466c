package sequence

import (
	"regexp"
	"strings"

	"whatsapp-sequencer/internal/models"
)

// Symbolic references a variable value may hold instead of literal text.
const (
	RefFirstName   = "{firstName}"
	RefLastName    = "{lastName}"
	RefPhoneNumber = "{phoneNumber}"
	RefOffer       = "{offer}"

	missingValue = "N/A"
)

var placeholderPattern = regexp.MustCompile(`\{\{\d+\}\}`)

// Parameters are the resolved values for a template body. Ordered follows
// placeholder occurrence and repeats duplicates; Named is keyed by the digit
// string inside the braces.
type Parameters struct {
	Ordered []string
	Named   map[string]string
}

// ResolveParameters fills every {{n}} placeholder in body from values,
// substituting contact fields for symbolic references. Anything left empty
// becomes "N/A".
func ResolveParameters(body string, values models.VariableValues, contact *models.Contact) Parameters {
	params := Parameters{Named: map[string]string{}}

	for _, match := range placeholderPattern.FindAllString(body, -1) {
		key := strings.Trim(match, "{}")
		value := substitute(values[key], contact)
		if value == "" {
			value = missingValue
		}
		params.Ordered = append(params.Ordered, value)
		params.Named[key] = value
	}
	return params
}

func substitute(value string, contact *models.Contact) string {
	if contact == nil {
		return value
	}
	switch value {
	case RefFirstName:
		return contact.FirstName
	case RefLastName:
		return contact.LastName
	case RefPhoneNumber:
		return contact.PhoneNumber
	case RefOffer:
		return contact.OfferValue()
	}
	return value
}

// RequiresOffer reports whether any value is the {offer} reference.
func RequiresOffer(values models.VariableValues) bool {
	for _, v := range values {
		if v == RefOffer {
			return true
		}
	}
	return false
}
