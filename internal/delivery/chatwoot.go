package delivery

import (
	"context"
	"strings"

	"whatsapp-sequencer/internal/chatwoot"
)

// ConversationClient is the part of the Chatwoot client ChatwootSender needs.
type ConversationClient interface {
	SendMessage(ctx context.Context, creds chatwoot.Credentials, conversationID string, msg chatwoot.MessageRequest) (string, error)
}

// ChatwootSender relays the template through the contact's Chatwoot
// conversation using the owning account's credentials.
type ChatwootSender struct {
	client ConversationClient
}

func NewChatwootSender(client ConversationClient) *ChatwootSender {
	return &ChatwootSender{client: client}
}

func (s *ChatwootSender) Send(ctx context.Context, msg Message) (Result, error) {
	creds := chatwoot.ResolveCredentials(msg.Account, chatwoot.EnvCredentials{}, false)
	if creds == nil {
		return Result{Backend: BackendChatwoot}, ErrCredentialsMissing
	}
	conversationID := conversationOf(msg)
	if conversationID == "" {
		return Result{Backend: BackendChatwoot}, ErrConversationNotLinked
	}

	tmpl := msg.Template
	id, err := s.client.SendMessage(ctx, *creds, conversationID,
		chatwoot.TemplateMessage(tmpl.MetaTemplateName, tmpl.Category, tmpl.Language, msg.Named))
	if err != nil {
		return Result{Backend: BackendChatwoot}, err
	}
	return Result{MessageID: id, Backend: BackendChatwoot}, nil
}

func conversationOf(msg Message) string {
	if msg.Contact == nil || msg.Contact.ChatwootConversationID == nil {
		return ""
	}
	return strings.TrimSpace(*msg.Contact.ChatwootConversationID)
}
