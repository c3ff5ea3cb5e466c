package models

import "encoding/json"

// WebhookPayload represents the incoming JSON payload from WhatsApp. Only
// delivery statuses and template review updates are decoded.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value ChangeValue `json:"value"`
	Field string      `json:"field"`
}

type ChangeValue struct {
	MessagingProduct string   `json:"messaging_product"`
	Metadata         Metadata `json:"metadata"`
	Statuses         []Status `json:"statuses,omitempty"`

	// Set on message_template_status_update changes. Meta sends the id as a
	// number.
	MessageTemplateID   json.Number `json:"message_template_id,omitempty"`
	MessageTemplateName string      `json:"message_template_name,omitempty"`
	Event               string      `json:"event,omitempty"`
	Reason              string      `json:"reason,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Status is a delivery receipt for an outbound message. Timestamp is unix
// seconds as a string.
type Status struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientId string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
