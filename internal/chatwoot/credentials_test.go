package chatwoot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-sequencer/internal/models"
)

func strPtr(s string) *string { return &s }

func TestResolveCredentialsPrefersAccount(t *testing.T) {
	account := &models.MetaAccount{
		DisplayName:            "Acme",
		PhoneNumber:            "+15550001111",
		ChatwootAccountID:      strPtr(" 12 "),
		ChatwootAPIAccessToken: strPtr("tok\n"),
	}
	env := EnvCredentials{AccountID: "99", APIAccessToken: "env-token"}

	creds := ResolveCredentials(account, env, true)
	require.NotNil(t, creds)
	assert.Equal(t, "12", creds.AccountID)
	assert.Equal(t, "tok", creds.APIAccessToken)
	assert.Equal(t, SourceMetaAccount, creds.Source)
	assert.Equal(t, "Acme", creds.Label)
}

func TestResolveCredentialsEnvFallback(t *testing.T) {
	account := &models.MetaAccount{ChatwootAccountID: strPtr("12")}
	env := EnvCredentials{AccountID: "99", APIAccessToken: "env-token", PhoneNumber: "+4470000"}

	creds := ResolveCredentials(account, env, true)
	require.NotNil(t, creds)
	assert.Equal(t, "99", creds.AccountID)
	assert.Equal(t, SourceEnv, creds.Source)
	assert.Equal(t, "Chatwoot Account", creds.Label)
	assert.Equal(t, "+4470000", creds.PhoneNumber)

	assert.Nil(t, ResolveCredentials(account, env, false))
}

func TestResolveCredentialsNone(t *testing.T) {
	assert.Nil(t, ResolveCredentials(nil, EnvCredentials{AccountID: "1"}, true))
	assert.Nil(t, ResolveCredentials(&models.MetaAccount{}, EnvCredentials{}, true))
}
