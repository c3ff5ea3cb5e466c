package chatwoot

import (
	"strings"

	"whatsapp-sequencer/internal/models"
)

// Source says where a set of credentials came from.
type Source string

const (
	SourceMetaAccount Source = "meta-account"
	SourceEnv         Source = "env"

	defaultEnvLabel = "Chatwoot Account"
)

type Credentials struct {
	AccountID      string
	APIAccessToken string
	Source         Source
	Label          string
	PhoneNumber    string
}

// EnvCredentials are the process-level credentials read from configuration.
type EnvCredentials struct {
	AccountID      string
	APIAccessToken string
	Label          string
	PhoneNumber    string
}

// ResolveCredentials picks the account's own Chatwoot credentials when both
// halves are set. The environment pair is used only when allowEnvFallback is
// true. A nil result means Chatwoot is not available.
func ResolveCredentials(account *models.MetaAccount, env EnvCredentials, allowEnvFallback bool) *Credentials {
	if account != nil {
		id := trimmed(account.ChatwootAccountID)
		token := trimmed(account.ChatwootAPIAccessToken)
		if id != "" && token != "" {
			return &Credentials{
				AccountID:      id,
				APIAccessToken: token,
				Source:         SourceMetaAccount,
				Label:          account.DisplayName,
				PhoneNumber:    account.PhoneNumber,
			}
		}
	}

	if !allowEnvFallback {
		return nil
	}

	id := strings.TrimSpace(env.AccountID)
	token := strings.TrimSpace(env.APIAccessToken)
	if id == "" || token == "" {
		return nil
	}

	label := strings.TrimSpace(env.Label)
	if label == "" {
		label = defaultEnvLabel
	}
	return &Credentials{
		AccountID:      id,
		APIAccessToken: token,
		Source:         SourceEnv,
		Label:          label,
		PhoneNumber:    strings.TrimSpace(env.PhoneNumber),
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
