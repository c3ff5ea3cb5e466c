package delivery

import (
	"context"

	"whatsapp-sequencer/internal/phone"
	"whatsapp-sequencer/internal/whatsapp"
)

// TemplateClient is the part of the WhatsApp client MetaSender needs.
type TemplateClient interface {
	SendTemplate(ctx context.Context, msg whatsapp.TemplateMessage) (string, error)
}

type MetaSender struct {
	client TemplateClient
}

func NewMetaSender(client TemplateClient) *MetaSender {
	return &MetaSender{client: client}
}

func (s *MetaSender) Send(ctx context.Context, msg Message) (Result, error) {
	id, err := s.client.SendTemplate(ctx, whatsapp.TemplateMessage{
		PhoneNumberID: msg.Account.PhoneNumberID,
		AccessToken:   msg.Account.AccessToken,
		To:            phone.Digits(msg.Contact.PhoneNumber),
		TemplateName:  msg.Template.MetaTemplateName,
		LanguageCode:  msg.Template.Language,
		BodyParams:    msg.Ordered,
	})
	if err != nil {
		return Result{Backend: BackendMeta}, err
	}
	return Result{MessageID: id, Backend: BackendMeta}, nil
}
