package delivery

import (
	"context"

	"whatsapp-sequencer/internal/chatwoot"
	"whatsapp-sequencer/internal/models"
)

// UseChatwoot reports whether a message for contact on account goes through
// Chatwoot: the account must carry its own Chatwoot credentials and the
// contact must be linked to a conversation.
func UseChatwoot(account *models.MetaAccount, contact *models.Contact) bool {
	if chatwoot.ResolveCredentials(account, chatwoot.EnvCredentials{}, false) == nil {
		return false
	}
	return conversationOf(Message{Contact: contact}) != ""
}

// Router is a Sender that picks a backend per message.
type Router struct {
	meta     Sender
	chatwoot Sender
}

func NewRouter(meta, chatwoot Sender) *Router {
	return &Router{meta: meta, chatwoot: chatwoot}
}

func (r *Router) Send(ctx context.Context, msg Message) (Result, error) {
	if UseChatwoot(msg.Account, msg.Contact) {
		return r.chatwoot.Send(ctx, msg)
	}
	return r.meta.Send(ctx, msg)
}
