package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"whatsapp-sequencer/internal/models"
)

func strPtr(s string) *string { return &s }

func TestResolveParametersSubstitutesContactFields(t *testing.T) {
	contact := &models.Contact{FirstName: "Ava", Offer: strPtr("10% off")}
	values := models.VariableValues{"1": RefFirstName, "2": RefOffer}

	params := ResolveParameters("Hi {{1}}, offer: {{2}}", values, contact)

	assert.Equal(t, []string{"Ava", "10% off"}, params.Ordered)
	assert.Equal(t, map[string]string{"1": "Ava", "2": "10% off"}, params.Named)
}

func TestResolveParametersFallsBackToNA(t *testing.T) {
	contact := &models.Contact{FirstName: "Ava", PhoneNumber: "+15550001111"}
	values := models.VariableValues{"1": RefLastName, "3": RefPhoneNumber, "4": "literal"}

	params := ResolveParameters("{{1}} {{2}} {{3}} {{4}}", values, contact)

	assert.Equal(t, []string{"N/A", "N/A", "+15550001111", "literal"}, params.Ordered)
	assert.Equal(t, "N/A", params.Named["2"])
}

func TestResolveParametersRepeatsDuplicates(t *testing.T) {
	params := ResolveParameters("{{1}} and again {{1}}", models.VariableValues{"1": "x"}, &models.Contact{})

	assert.Equal(t, []string{"x", "x"}, params.Ordered)
	assert.Equal(t, map[string]string{"1": "x"}, params.Named)
}

func TestResolveParametersNoPlaceholders(t *testing.T) {
	params := ResolveParameters("Hello there {name}", models.VariableValues{"1": "x"}, &models.Contact{})

	assert.Empty(t, params.Ordered)
	assert.Empty(t, params.Named)
}

func TestRequiresOffer(t *testing.T) {
	assert.True(t, RequiresOffer(models.VariableValues{"1": RefFirstName, "2": RefOffer}))
	assert.False(t, RequiresOffer(models.VariableValues{"1": "offer"}))
	assert.False(t, RequiresOffer(nil))
}
