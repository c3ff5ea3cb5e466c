package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/delivery"
	"whatsapp-sequencer/internal/models"
)

var (
	ErrTemplateNotSpecified = errors.New("template not specified")
	ErrTemplateNotFound     = errors.New("template not found")
)

// Store is the persistence the engine needs.
type Store interface {
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	CreateSentMessage(ctx context.Context, msg *models.SentMessage) error
	CompleteSubscription(ctx context.Context, id string, completedAt time.Time, lastMessageSentAt *time.Time) error
	AdvanceSubscription(ctx context.Context, id string, adv database.Advance) error
}

// OfferSource resolves a contact's offer when a template asks for one.
type OfferSource interface {
	Resolve(ctx context.Context, account *models.MetaAccount, contact *models.Contact) (string, error)
}

// Notifier receives engine events. The websocket hub implements it.
type Notifier interface {
	BroadcastEvent(eventType string, data interface{})
}

const (
	EventMessageSent           = "message_sent"
	EventMessageFailed         = "message_failed"
	EventSubscriptionAdvanced  = "subscription_advanced"
	EventSubscriptionCompleted = "subscription_completed"
)

type MessageEvent struct {
	SubscriptionID string `json:"subscription_id"`
	ContactID      string `json:"contact_id"`
	TemplateID     string `json:"template_id"`
	StepOrder      int    `json:"step_order"`
	SubOrder       int    `json:"sub_order"`
	BurstIndex     int    `json:"burst_index"`
	Backend        string `json:"backend,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

type AdvanceEvent struct {
	SubscriptionID  string    `json:"subscription_id"`
	Step            int       `json:"step"`
	SubStep         int       `json:"sub_step"`
	NextScheduledAt time.Time `json:"next_scheduled_at"`
}

type CompletionEvent struct {
	SubscriptionID string           `json:"subscription_id"`
	Reason         CompletionReason `json:"reason"`
}

// Outcome summarises one Process call.
type Outcome string

const (
	// OutcomeScheduled means the pointer moved to a step due later.
	OutcomeScheduled Outcome = "scheduled"
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means a message failed and the pointer did not move.
	OutcomeAborted Outcome = "aborted"
	// OutcomeSkipped means the subscription was not ACTIVE.
	OutcomeSkipped Outcome = "skipped"
)

type Engine struct {
	store    Store
	sender   delivery.Sender
	offers   OfferSource
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func NewEngine(store Store, sender delivery.Sender, offers OfferSource, notifier Notifier, log *logrus.Entry) *Engine {
	return &Engine{
		store:    store,
		sender:   sender,
		offers:   offers,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Process runs sub from its current step until it fails a message, reaches
// a step with a positive delay, or completes. Zero-delay steps are sent in
// the same call. Message-level failures are recorded and reported as
// OutcomeAborted; a returned error comes from the store.
//
// A step that has started is always sent and recorded to the end, even when
// ctx is cancelled, so a delivered message never goes unrecorded.
// Cancellation is honoured between steps.
func (e *Engine) Process(ctx context.Context, sub *models.SequenceSubscription) (Outcome, error) {
	log := e.log.WithField("subscription_id", sub.ID)
	work := context.WithoutCancel(ctx)
	steps := sub.Sequence.Steps

	var idx int
	switch st := StateOf(sub, steps).(type) {
	case Active:
		idx = st.StepIndex
	case Completed:
		if st.Reason != ReasonStepMissing {
			return OutcomeSkipped, nil
		}
		log.Warn("No step found for subscription; marking as completed")
		if err := e.store.CompleteSubscription(work, sub.ID, e.now(), nil); err != nil {
			return "", err
		}
		e.publish(EventSubscriptionCompleted, CompletionEvent{SubscriptionID: sub.ID, Reason: ReasonStepMissing})
		return OutcomeCompleted, nil
	default:
		return OutcomeSkipped, nil
	}

	account := &sub.Sequence.MetaAccount
	contact := sub.Contact

	for started := idx; idx < len(steps); {
		if idx > started && ctx.Err() != nil {
			log.Info("Stopping before next step; processing was cancelled")
			return OutcomeScheduled, nil
		}
		step := &steps[idx]
		for i, entry := range BurstEntries(step) {
			ok, err := e.sendEntry(work, log, sub, account, &contact, step, i+1, entry)
			if err != nil {
				return "", err
			}
			if !ok {
				return OutcomeAborted, nil
			}
		}

		idx++
		sentAt := e.now()
		if idx >= len(steps) {
			if err := e.store.CompleteSubscription(work, sub.ID, sentAt, &sentAt); err != nil {
				return "", err
			}
			sub.Status = models.StatusCompleted
			log.Info("Sequence completed for subscription")
			e.publish(EventSubscriptionCompleted, CompletionEvent{SubscriptionID: sub.ID, Reason: ReasonFinished})
			return OutcomeCompleted, nil
		}

		next := &steps[idx]
		nextAt := NextScheduledAt(sentAt, next.DelayValue, next.DelayUnit)
		if err := e.store.AdvanceSubscription(work, sub.ID, database.Advance{
			Step:              next.StepOrder,
			SubStep:           next.SubOrder,
			NodeID:            next.NodeID,
			LastMessageSentAt: sentAt,
			NextScheduledAt:   nextAt,
		}); err != nil {
			return "", err
		}
		sub.CurrentStep, sub.CurrentSubStep, sub.CurrentNodeID = next.StepOrder, next.SubOrder, next.NodeID
		sub.NextScheduledAt = &nextAt
		sub.LastMessageSentAt = &sentAt

		e.publish(EventSubscriptionAdvanced, AdvanceEvent{
			SubscriptionID:  sub.ID,
			Step:            next.StepOrder,
			SubStep:         next.SubOrder,
			NextScheduledAt: nextAt,
		})

		if next.DelayValue > 0 {
			log.WithFields(logrus.Fields{
				"next_step":     next.StepOrder,
				"next_sub_step": next.SubOrder,
				"scheduled_at":  nextAt.Format(time.RFC3339),
			}).Info("Scheduled next step")
			return OutcomeScheduled, nil
		}
	}
	return OutcomeScheduled, nil
}

// sendEntry delivers one burst entry and records the attempt. It reports
// false when the message failed.
func (e *Engine) sendEntry(ctx context.Context, log *logrus.Entry, sub *models.SequenceSubscription, account *models.MetaAccount, contact *models.Contact, step *models.SequenceStep, burstIndex int, entry BurstEntry) (bool, error) {
	log = log.WithFields(logrus.Fields{
		"step_order":  step.StepOrder,
		"sub_step":    step.SubOrder,
		"burst_index": burstIndex,
		"template_id": entry.TemplateID,
	})
	log.Info("Sending sequence step message")

	res, sendErr := e.deliver(ctx, account, contact, step, entry)
	at := e.now()

	record := &models.SentMessage{
		ContactID:      contact.ID,
		SubscriptionID: sub.ID,
		TemplateID:     optional(entry.TemplateID),
		Backend:        string(res.Backend),
		StepOrder:      step.StepOrder,
		SubOrder:       step.SubOrder,
		BurstIndex:     burstIndex,
	}
	event := MessageEvent{
		SubscriptionID: sub.ID,
		ContactID:      contact.ID,
		TemplateID:     entry.TemplateID,
		StepOrder:      step.StepOrder,
		SubOrder:       step.SubOrder,
		BurstIndex:     burstIndex,
		Backend:        string(res.Backend),
	}

	if sendErr != nil {
		log.WithError(sendErr).Error("Failed to send template message")
		record.Status = models.MessageFailed
		record.FailedAt = &at
		record.ErrorMessage = sendErr.Error()
		if err := e.store.CreateSentMessage(ctx, record); err != nil {
			return false, fmt.Errorf("record failed message: %w", err)
		}
		event.Error = record.ErrorMessage
		e.publish(EventMessageFailed, event)
		return false, nil
	}

	record.Status = models.MessageSent
	record.SentAt = &at
	record.MetaMessageID = optional(res.MessageID)
	if err := e.store.CreateSentMessage(ctx, record); err != nil {
		return false, fmt.Errorf("record sent message: %w", err)
	}
	event.MessageID = res.MessageID
	e.publish(EventMessageSent, event)
	return true, nil
}

// deliver resolves the template and its parameters and sends the message.
// Every error it returns is a message-level failure.
func (e *Engine) deliver(ctx context.Context, account *models.MetaAccount, contact *models.Contact, step *models.SequenceStep, entry BurstEntry) (delivery.Result, error) {
	tmpl, err := e.template(ctx, entry.TemplateID)
	if err != nil {
		return delivery.Result{}, err
	}

	values := entry.Values(step)
	if RequiresOffer(values) {
		offer, err := e.resolveOffer(ctx, account, contact)
		if err != nil {
			return delivery.Result{}, fmt.Errorf("template %q requires an offer but none could be resolved for %s (%s): %w",
				templateLabel(tmpl), contact.DisplayName(), contact.PhoneNumber, err)
		}
		contact.Offer = &offer
	}

	params := ResolveParameters(tmpl.BodyText, values, contact)
	return e.sender.Send(ctx, delivery.Message{
		Account:  account,
		Contact:  contact,
		Template: tmpl,
		Ordered:  params.Ordered,
		Named:    params.Named,
	})
}

func (e *Engine) template(ctx context.Context, id string) (*models.Template, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrTemplateNotSpecified
	}
	tmpl, err := e.store.GetTemplate(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", id, err)
	}
	return tmpl, nil
}

func (e *Engine) resolveOffer(ctx context.Context, account *models.MetaAccount, contact *models.Contact) (string, error) {
	if e.offers == nil {
		if offer := contact.OfferValue(); offer != "" {
			return offer, nil
		}
		return "", ErrOfferUnresolved
	}
	return e.offers.Resolve(ctx, account, contact)
}

func (e *Engine) publish(eventType string, data interface{}) {
	if e.notifier != nil {
		e.notifier.BroadcastEvent(eventType, data)
	}
}

func templateLabel(t *models.Template) string {
	if t.Name != "" {
		return t.Name
	}
	return t.MetaTemplateName
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
