package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/logging"
	"whatsapp-sequencer/internal/models"
	"whatsapp-sequencer/internal/scheduler"
	"whatsapp-sequencer/internal/sequence"
)

// SubscriptionStore is the part of database.Store the subscription routes use.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context, status models.SubscriptionStatus) ([]models.SequenceSubscription, error)
	GetSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error)
	Subscribe(ctx context.Context, contactID, sequenceID string, now time.Time, schedule func(models.SequenceStep) time.Time) (*models.SequenceSubscription, error)
	PauseSubscription(ctx context.Context, id string, at time.Time) (*models.SequenceSubscription, error)
	ResumeSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error)
	CancelSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error)
	CancelActiveForContacts(ctx context.Context, contactIDs []string) (int64, error)
	ListSentMessages(ctx context.Context, subscriptionID string) ([]models.SentMessage, error)
}

// Runner drives the scheduler on demand.
type Runner interface {
	RunTick(ctx context.Context) (scheduler.TickReport, error)
	ProcessOne(ctx context.Context, id string) (sequence.Outcome, error)
	Stats() scheduler.Stats
}

type SubscriptionHandler struct {
	store  SubscriptionStore
	runner Runner
	log    *logrus.Entry
	now    func() time.Time
}

func NewSubscriptionHandler(store SubscriptionStore, runner Runner, log *logrus.Entry) *SubscriptionHandler {
	return &SubscriptionHandler{store: store, runner: runner, log: log, now: time.Now}
}

var validStatuses = map[models.SubscriptionStatus]bool{
	models.StatusActive:    true,
	models.StatusPaused:    true,
	models.StatusCompleted: true,
	models.StatusCancelled: true,
}

func (h *SubscriptionHandler) GetSubscriptions(c *gin.Context) {
	status := models.SubscriptionStatus(c.Query("status"))
	if status != "" && !validStatuses[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status " + string(status)})
		return
	}

	subs, err := h.store.ListSubscriptions(c.Request.Context(), status)
	if err != nil {
		h.internalError(c, "Failed to list subscriptions", err)
		return
	}

	// Return empty array instead of null
	if subs == nil {
		subs = []models.SequenceSubscription{}
	}
	c.JSON(http.StatusOK, subs)
}

type CreateSubscriptionRequest struct {
	ContactID  string `json:"contact_id" binding:"required"`
	SequenceID string `json:"sequence_id" binding:"required"`
}

// CreateSubscription enrolls a contact, or restarts an existing enrollment
// from the first step.
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := h.now()
	sub, err := h.store.Subscribe(c.Request.Context(), req.ContactID, req.SequenceID, now, func(step models.SequenceStep) time.Time {
		return sequence.NextScheduledAt(now, step.DelayValue, step.DelayUnit)
	})
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact or sequence not found"})
		return
	case errors.Is(err, database.ErrSequenceInactive), errors.Is(err, database.ErrSequenceEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.internalError(c, "Failed to create subscription", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"contact_id":      sub.ContactID,
		"sequence_id":     sub.SequenceID,
	}).Info("Subscription started")
	c.JSON(http.StatusCreated, sub)
}

func (h *SubscriptionHandler) PauseSubscription(c *gin.Context) {
	sub, err := h.store.PauseSubscription(c.Request.Context(), c.Param("id"), h.now())
	h.respondTransition(c, sub, err)
}

func (h *SubscriptionHandler) ResumeSubscription(c *gin.Context) {
	sub, err := h.store.ResumeSubscription(c.Request.Context(), c.Param("id"))
	h.respondTransition(c, sub, err)
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.store.CancelSubscription(c.Request.Context(), c.Param("id"))
	h.respondTransition(c, sub, err)
}

type BulkUnsubscribeRequest struct {
	ContactIDs []string `json:"contact_ids"`
}

// BulkUnsubscribe cancels the ACTIVE subscriptions of every listed contact.
func (h *SubscriptionHandler) BulkUnsubscribe(c *gin.Context) {
	var req BulkUnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.ContactIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contact_ids must be a non-empty array"})
		return
	}

	updated, err := h.store.CancelActiveForContacts(c.Request.Context(), req.ContactIDs)
	if err != nil {
		h.internalError(c, "Failed to unsubscribe contacts", err)
		return
	}
	h.log.WithFields(logrus.Fields{"contacts": len(req.ContactIDs), "updated": updated}).Info("Contacts unsubscribed")
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *SubscriptionHandler) respondTransition(c *gin.Context, sub *models.SequenceSubscription, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case errors.Is(err, database.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		h.internalError(c, "Failed to update subscription", err)
	default:
		c.JSON(http.StatusOK, gin.H{"id": sub.ID, "status": sub.Status})
	}
}

// SendNow runs the current step of an ACTIVE subscription immediately,
// ignoring its scheduled time.
func (h *SubscriptionHandler) SendNow(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	sub, err := h.store.GetSubscription(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to load subscription", err)
		return
	}
	if sub.Status != models.StatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription is " + string(sub.Status)})
		return
	}

	outcome, err := h.runner.ProcessOne(ctx, id)
	switch {
	case errors.Is(err, scheduler.ErrTickInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.internalError(c, "Failed to process subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "outcome": outcome})
}

func (h *SubscriptionHandler) GetMessages(c *gin.Context) {
	msgs, err := h.store.ListSentMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internalError(c, "Failed to list messages", err)
		return
	}
	if msgs == nil {
		msgs = []models.SentMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *SubscriptionHandler) internalError(c *gin.Context, message string, err error) {
	logging.ReportError(h.log, message, err, logrus.Fields{"path": c.FullPath()})
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
