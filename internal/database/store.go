// Package database is the persistent store for sequences, subscriptions and
// the sent-message audit trail.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"whatsapp-sequencer/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("subscription status does not allow this change")
	ErrSequenceInactive  = errors.New("sequence is not active")
	ErrSequenceEmpty     = errors.New("sequence has no steps")
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Advance moves a subscription's pointer to another step.
type Advance struct {
	Step              int
	SubStep           int
	NodeID            *string
	LastMessageSentAt time.Time
	NextScheduledAt   time.Time
}

func orderedSteps(db *gorm.DB) *gorm.DB {
	return db.Order("step_order ASC").Order("sub_order ASC")
}

func withEngineRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Contact").
		Preload("Sequence").
		Preload("Sequence.Steps", orderedSteps).
		Preload("Sequence.MetaAccount")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// DueSubscriptions returns ACTIVE subscriptions whose next run is at or
// before now, with contact, ordered steps and owning account loaded.
func (s *Store) DueSubscriptions(ctx context.Context, now time.Time) ([]models.SequenceSubscription, error) {
	var subs []models.SequenceSubscription
	err := withEngineRelations(s.db.WithContext(ctx)).
		Where("status = ? AND next_scheduled_at <= ?", models.StatusActive, now).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("query due subscriptions: %w", err)
	}
	return subs, nil
}

// GetSubscription loads one subscription with the same relations as
// DueSubscriptions.
func (s *Store) GetSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error) {
	var sub models.SequenceSubscription
	if err := withEngineRelations(s.db.WithContext(ctx)).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// ListSubscriptions returns subscriptions newest first, filtered by status
// when one is given.
func (s *Store) ListSubscriptions(ctx context.Context, status models.SubscriptionStatus) ([]models.SequenceSubscription, error) {
	q := s.db.WithContext(ctx).Preload("Contact").Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var subs []models.SequenceSubscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscribe starts contact on sequence at its first step. An existing
// subscription for the pair is reset to the start.
func (s *Store) Subscribe(ctx context.Context, contactID, sequenceID string, now time.Time, schedule func(models.SequenceStep) time.Time) (*models.SequenceSubscription, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).Select("id").First(&contact, "id = ?", contactID).Error; err != nil {
		return nil, notFound(err)
	}

	var seq models.Sequence
	err := s.db.WithContext(ctx).
		Preload("Steps", orderedSteps).
		First(&seq, "id = ?", sequenceID).Error
	if err != nil {
		return nil, notFound(err)
	}
	if !seq.IsActive {
		return nil, ErrSequenceInactive
	}
	if len(seq.Steps) == 0 {
		return nil, ErrSequenceEmpty
	}
	first := seq.Steps[0]
	next := schedule(first)

	var sub models.SequenceSubscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("contact_id = ? AND sequence_id = ?", contactID, sequenceID).First(&sub).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub = models.SequenceSubscription{ContactID: contactID, SequenceID: sequenceID}
		case err != nil:
			return err
		}

		sub.Status = models.StatusActive
		sub.CurrentStep = first.StepOrder
		sub.CurrentSubStep = first.SubOrder
		sub.CurrentNodeID = first.NodeID
		sub.NextScheduledAt = &next
		sub.StartedAt = now
		sub.PausedAt = nil
		sub.CompletedAt = nil
		sub.LastMessageSentAt = nil
		return tx.Omit("Contact", "Sequence").Save(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var tmpl models.Template
	if err := s.db.WithContext(ctx).First(&tmpl, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tmpl, nil
}

// ApplyTemplateStatus records Meta's review result on every template with
// the given backend id. It reports false when none match.
func (s *Store) ApplyTemplateStatus(ctx context.Context, metaTemplateID string, status models.TemplateStatus) (bool, error) {
	if metaTemplateID == "" {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Template{}).
		Where("meta_template_id = ?", metaTemplateID).
		Update("status", status)
	if res.Error != nil {
		return false, fmt.Errorf("update template %s: %w", metaTemplateID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) CreateSentMessage(ctx context.Context, msg *models.SentMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// ListSentMessages returns a subscription's audit trail, oldest first.
func (s *Store) ListSentMessages(ctx context.Context, subscriptionID string) ([]models.SentMessage, error) {
	var msgs []models.SentMessage
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) CompleteSubscription(ctx context.Context, id string, completedAt time.Time, lastMessageSentAt *time.Time) error {
	updates := map[string]interface{}{
		"status":       models.StatusCompleted,
		"completed_at": completedAt,
	}
	if lastMessageSentAt != nil {
		updates["last_message_sent_at"] = *lastMessageSentAt
	}
	return s.updateSubscription(ctx, id, updates)
}

func (s *Store) AdvanceSubscription(ctx context.Context, id string, adv Advance) error {
	return s.updateSubscription(ctx, id, map[string]interface{}{
		"current_step":         adv.Step,
		"current_sub_step":     adv.SubStep,
		"current_node_id":      adv.NodeID,
		"last_message_sent_at": adv.LastMessageSentAt,
		"next_scheduled_at":    adv.NextScheduledAt,
	})
}

// PauseSubscription moves an ACTIVE subscription to PAUSED.
func (s *Store) PauseSubscription(ctx context.Context, id string, at time.Time) (*models.SequenceSubscription, error) {
	return s.transition(ctx, id, models.StatusActive, map[string]interface{}{
		"status":    models.StatusPaused,
		"paused_at": at,
	})
}

// ResumeSubscription moves a PAUSED subscription back to ACTIVE.
func (s *Store) ResumeSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error) {
	return s.transition(ctx, id, models.StatusPaused, map[string]interface{}{
		"status":    models.StatusActive,
		"paused_at": nil,
	})
}

// CancelSubscription stops a subscription that has not completed.
func (s *Store) CancelSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error) {
	var sub models.SequenceSubscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if sub.Status == models.StatusCompleted || sub.Status == models.StatusCancelled {
		return nil, ErrInvalidTransition
	}
	if err := s.db.WithContext(ctx).Model(&sub).Update("status", models.StatusCancelled).Error; err != nil {
		return nil, err
	}
	sub.Status = models.StatusCancelled
	return &sub, nil
}

// CancelActiveForContacts cancels every ACTIVE subscription belonging to the
// given contacts and reports how many changed. PAUSED subscriptions are left
// alone.
func (s *Store) CancelActiveForContacts(ctx context.Context, contactIDs []string) (int64, error) {
	if len(contactIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.SequenceSubscription{}).
		Where("contact_id IN ? AND status = ?", contactIDs, models.StatusActive).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("cancel subscriptions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) transition(ctx context.Context, id string, from models.SubscriptionStatus, updates map[string]interface{}) (*models.SequenceSubscription, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SequenceSubscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	var sub models.SequenceSubscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}
	return &sub, nil
}

func (s *Store) updateSubscription(ctx context.Context, id string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&models.SequenceSubscription{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update subscription %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateContactOffer(ctx context.Context, contactID, offer string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("id = ?", contactID).
		Update("offer", offer)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var statusRank = map[models.MessageStatus]int{
	models.MessageSent:      1,
	models.MessageDelivered: 2,
	models.MessageRead:      3,
}

// StatusUpdate is a delivery receipt for one backend message id.
type StatusUpdate struct {
	MetaMessageID string
	Status        models.MessageStatus
	At            time.Time
	ErrorMessage  string
}

// ApplyStatusUpdate records a receipt on the matching SentMessage. SENT,
// DELIVERED and READ only move forward; FAILED always applies. It reports
// false when no row matches or the receipt is stale.
func (s *Store) ApplyStatusUpdate(ctx context.Context, u StatusUpdate) (bool, error) {
	var msg models.SentMessage
	err := s.db.WithContext(ctx).Where("meta_message_id = ?", u.MetaMessageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{}
	switch u.Status {
	case models.MessageFailed:
		updates["status"] = models.MessageFailed
		updates["failed_at"] = u.At
		updates["error_message"] = u.ErrorMessage
	case models.MessageSent, models.MessageDelivered, models.MessageRead:
		if msg.Status == models.MessageFailed || statusRank[u.Status] <= statusRank[msg.Status] {
			return false, nil
		}
		updates["status"] = u.Status
		switch u.Status {
		case models.MessageSent:
			updates["sent_at"] = u.At
		case models.MessageDelivered:
			updates["delivered_at"] = u.At
		case models.MessageRead:
			updates["read_at"] = u.At
		}
	default:
		return false, nil
	}

	if err := s.db.WithContext(ctx).Model(&msg).Updates(updates).Error; err != nil {
		return false, err
	}
	return true, nil
}
