package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionStatus is the lifecycle status of a SequenceSubscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "ACTIVE"
	StatusPaused    SubscriptionStatus = "PAUSED"
	StatusCompleted SubscriptionStatus = "COMPLETED"
	StatusCancelled SubscriptionStatus = "CANCELLED"
)

// DelayUnit is the unit of a step's delayValue.
type DelayUnit string

const (
	DelayMinutes DelayUnit = "MINUTES"
	DelayHours   DelayUnit = "HOURS"
	DelayDays    DelayUnit = "DAYS"
)

// MessageStatus is the delivery status of a SentMessage.
type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
	MessageFailed    MessageStatus = "FAILED"
)

// TemplateStatus is Meta's review state for a Template.
type TemplateStatus string

const (
	TemplatePending  TemplateStatus = "PENDING"
	TemplateApproved TemplateStatus = "APPROVED"
	TemplateRejected TemplateStatus = "REJECTED"
)

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// MetaAccount is the WhatsApp Business account owning a sequence.
type MetaAccount struct {
	ID                     string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DisplayName            string    `gorm:"type:varchar(255)" json:"display_name"`
	PhoneNumber            string    `gorm:"type:varchar(50)" json:"phone_number"`
	PhoneNumberID          string    `gorm:"type:varchar(100);not null" json:"phone_number_id"`
	WabaID                 string    `gorm:"type:varchar(100)" json:"waba_id"`
	AccessToken            string    `gorm:"type:text" json:"-"`
	ChatwootAccountID      *string   `gorm:"type:varchar(50)" json:"chatwoot_account_id"`
	ChatwootAPIAccessToken *string   `gorm:"type:text" json:"-"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MetaAccount) TableName() string {
	return "meta_accounts"
}

func (m *MetaAccount) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	return nil
}

// Contact is a WhatsApp recipient, optionally linked to a Chatwoot contact.
type Contact struct {
	ID                     string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PhoneNumber            string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"phone_number"`
	FirstName              string    `gorm:"type:varchar(255)" json:"first_name"`
	LastName               string    `gorm:"type:varchar(255)" json:"last_name"`
	Offer                  *string   `gorm:"type:text" json:"offer"`
	ChatwootContactID      *string   `gorm:"type:varchar(50)" json:"chatwoot_contact_id"`
	ChatwootConversationID *string   `gorm:"type:varchar(50)" json:"chatwoot_conversation_id"`
	ChatwootInboxID        *string   `gorm:"type:varchar(50)" json:"chatwoot_inbox_id"`
	ChatwootSourceID       *string   `gorm:"type:varchar(255)" json:"chatwoot_source_id"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}

// DisplayName is "First Last", falling back to the phone number.
func (c *Contact) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.PhoneNumber
	}
	return name
}

// OfferValue returns the trimmed offer or "" when unset.
func (c *Contact) OfferValue() string {
	if c.Offer == nil {
		return ""
	}
	return strings.TrimSpace(*c.Offer)
}

// Template represents an approved WhatsApp message template
type Template struct {
	ID               string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name             string         `gorm:"type:varchar(255)" json:"name"`
	MetaTemplateName string         `gorm:"type:varchar(255);not null" json:"meta_template_name"`
	MetaTemplateID   string         `gorm:"type:varchar(100)" json:"meta_template_id"`
	BodyText         string         `gorm:"type:text" json:"body_text"`
	Language         string         `gorm:"type:varchar(20)" json:"language"`
	Category         string         `gorm:"type:varchar(50)" json:"category"`
	Status           TemplateStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	MetaAccountID    *string        `gorm:"type:varchar(36);index" json:"meta_account_id"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) BeforeCreate(*gorm.DB) error {
	newID(&t.ID)
	if t.Status == "" {
		t.Status = TemplatePending
	}
	return nil
}

// Sequence is an ordered messaging journey.
type Sequence struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	IsActive      bool           `gorm:"not null" json:"is_active"`
	MetaAccountID string         `gorm:"type:varchar(36);index;not null" json:"meta_account_id"`
	MetaAccount   MetaAccount    `json:"meta_account"`
	Steps         []SequenceStep `gorm:"foreignKey:SequenceID;constraint:OnDelete:CASCADE;" json:"steps"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Sequence) TableName() string {
	return "sequences"
}

func (s *Sequence) BeforeCreate(*gorm.DB) error {
	newID(&s.ID)
	return nil
}

// SequenceStep is one (stepOrder, subOrder) position of a sequence.
// DelayValue/DelayUnit is the wait before this step fires.
type SequenceStep struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SequenceID     string         `gorm:"type:varchar(36);index;not null" json:"sequence_id"`
	NodeID         *string        `gorm:"type:varchar(255)" json:"node_id"`
	StepOrder      int            `gorm:"not null" json:"step_order"`
	SubOrder       int            `gorm:"not null;default:0" json:"sub_order"`
	DelayValue     int            `gorm:"not null;default:0" json:"delay_value"`
	DelayUnit      DelayUnit      `gorm:"type:varchar(20);default:'MINUTES'" json:"delay_unit"`
	TemplateID     *string        `gorm:"type:varchar(36)" json:"template_id"`
	VariableValues VariableValues `gorm:"type:text" json:"variable_values"`
	BurstTemplates RawJSON        `gorm:"type:text" json:"burst_templates"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (SequenceStep) TableName() string {
	return "sequence_steps"
}

func (s *SequenceStep) BeforeCreate(*gorm.DB) error {
	newID(&s.ID)
	return nil
}

// SequenceSubscription binds one contact to one sequence.
type SequenceSubscription struct {
	ID                string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ContactID         string             `gorm:"type:varchar(36);not null;uniqueIndex:idx_subscription_contact_sequence" json:"contact_id"`
	Contact           Contact            `json:"contact"`
	SequenceID        string             `gorm:"type:varchar(36);not null;uniqueIndex:idx_subscription_contact_sequence" json:"sequence_id"`
	Sequence          Sequence           `json:"sequence"`
	Status            SubscriptionStatus `gorm:"type:varchar(20);index;default:'ACTIVE'" json:"status"`
	CurrentStep       int                `gorm:"default:0" json:"current_step"`
	CurrentSubStep    int                `gorm:"default:0" json:"current_sub_step"`
	CurrentNodeID     *string            `gorm:"type:varchar(255)" json:"current_node_id"`
	NextScheduledAt   *time.Time         `gorm:"index" json:"next_scheduled_at"`
	StartedAt         time.Time          `json:"started_at"`
	PausedAt          *time.Time         `json:"paused_at"`
	CompletedAt       *time.Time         `json:"completed_at"`
	LastMessageSentAt *time.Time         `json:"last_message_sent_at"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SequenceSubscription) TableName() string {
	return "sequence_subscriptions"
}

func (s *SequenceSubscription) BeforeCreate(*gorm.DB) error {
	newID(&s.ID)
	return nil
}

// SentMessage is the audit row of one attempted message.
type SentMessage struct {
	ID             string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ContactID      string        `gorm:"type:varchar(36);index;not null" json:"contact_id"`
	SubscriptionID string        `gorm:"type:varchar(36);index;not null" json:"subscription_id"`
	TemplateID     *string       `gorm:"type:varchar(36)" json:"template_id"`
	MetaMessageID  *string       `gorm:"type:varchar(255);index" json:"meta_message_id"`
	Backend        string        `gorm:"type:varchar(20)" json:"backend"`
	Status         MessageStatus `gorm:"type:varchar(20);not null" json:"status"`
	StepOrder      int           `json:"step_order"`
	SubOrder       int           `json:"sub_order"`
	BurstIndex     int           `json:"burst_index"`
	SentAt         *time.Time    `json:"sent_at"`
	DeliveredAt    *time.Time    `json:"delivered_at"`
	ReadAt         *time.Time    `json:"read_at"`
	FailedAt       *time.Time    `json:"failed_at"`
	ErrorMessage   string        `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SentMessage) TableName() string {
	return "sent_messages"
}

func (m *SentMessage) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	return nil
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&MetaAccount{},
		&Contact{},
		&Template{},
		&Sequence{},
		&SequenceStep{},
		&SequenceSubscription{},
		&SentMessage{},
	}
}
