// Package delivery routes resolved template messages to a backend: the Meta
// Cloud API directly, or a Chatwoot conversation that relays it.
package delivery

import (
	"context"
	"errors"

	"whatsapp-sequencer/internal/models"
)

var (
	ErrCredentialsMissing    = errors.New("chatwoot credentials are missing on the Meta account record")
	ErrConversationNotLinked = errors.New("chatwoot conversation is not linked to this contact")
)

// Backend names the sender that handled a message.
type Backend string

const (
	BackendMeta     Backend = "meta"
	BackendChatwoot Backend = "chatwoot"
)

// Message is one template send with its parameters already resolved.
// Ordered feeds positional body parameters; Named maps placeholder keys to
// the same values.
type Message struct {
	Account  *models.MetaAccount
	Contact  *models.Contact
	Template *models.Template
	Ordered  []string
	Named    map[string]string
}

// Result is the normalised outcome of a successful send. MessageID is empty
// when the backend did not return one.
type Result struct {
	MessageID string
	Backend   Backend
}

type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}
