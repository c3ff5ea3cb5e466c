package webhook

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/models"
	wamodels "whatsapp-sequencer/pkg/models"
)

// StatusStore applies delivery receipts to the audit trail and template
// review results to templates.
type StatusStore interface {
	ApplyStatusUpdate(ctx context.Context, u database.StatusUpdate) (bool, error)
	ApplyTemplateStatus(ctx context.Context, metaTemplateID string, status models.TemplateStatus) (bool, error)
}

type Notifier interface {
	BroadcastEvent(eventType string, data interface{})
}

const (
	EventMessageStatus  = "message_status"
	EventTemplateStatus = "template_status"
)

type Handler struct {
	VerifyToken string
	Store       StatusStore
	Notifier    Notifier
	Log         *logrus.Entry
	now         func() time.Time
}

func NewHandler(verifyToken string, store StatusStore, notifier Notifier, log *logrus.Entry) *Handler {
	return &Handler{
		VerifyToken: verifyToken,
		Store:       store,
		Notifier:    notifier,
		Log:         log,
		now:         time.Now,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && h.VerifyToken != "" && token == h.VerifyToken {
			h.Log.Info("Webhook verified successfully!")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleStatus applies every status and template review update in the
// payload. It answers 200 for well-formed payloads even when a single update
// fails so Meta does not redeliver the batch.
func (h *Handler) HandleStatus(c *gin.Context) {
	var payload wamodels.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Log.WithError(err).Warn("Error binding webhook JSON")
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Value.MessageTemplateID != "" {
				h.applyTemplateStatus(c.Request.Context(), change.Value)
			}
			for _, status := range change.Value.Statuses {
				h.applyStatus(c.Request.Context(), status)
			}
		}
	}

	c.Status(http.StatusOK)
}

func (h *Handler) applyStatus(ctx context.Context, status wamodels.Status) {
	update, ok := h.toUpdate(status)
	if !ok {
		return
	}
	log := h.Log.WithFields(logrus.Fields{"meta_message_id": update.MetaMessageID, "status": update.Status})

	applied, err := h.Store.ApplyStatusUpdate(ctx, update)
	if err != nil {
		log.WithError(err).Error("Error handling message status")
		return
	}
	if !applied {
		log.Debug("Status ignored")
		return
	}
	if h.Notifier != nil {
		h.Notifier.BroadcastEvent(EventMessageStatus, gin.H{
			"meta_message_id": update.MetaMessageID,
			"status":          update.Status,
			"at":              update.At,
		})
	}
}

func (h *Handler) applyTemplateStatus(ctx context.Context, value wamodels.ChangeValue) {
	status := models.TemplatePending
	switch strings.ToUpper(value.Event) {
	case "APPROVED":
		status = models.TemplateApproved
	case "REJECTED":
		status = models.TemplateRejected
	}
	id := value.MessageTemplateID.String()
	log := h.Log.WithFields(logrus.Fields{"meta_template_id": id, "event": value.Event})

	applied, err := h.Store.ApplyTemplateStatus(ctx, id, status)
	if err != nil {
		log.WithError(err).Error("Error handling template status")
		return
	}
	if !applied {
		log.Debug("No template for status update")
		return
	}
	log.WithField("status", status).Info("Template status updated")
	if h.Notifier != nil {
		h.Notifier.BroadcastEvent(EventTemplateStatus, gin.H{
			"meta_template_id": id,
			"status":           status,
			"reason":           value.Reason,
		})
	}
}

func (h *Handler) toUpdate(status wamodels.Status) (database.StatusUpdate, bool) {
	var kind models.MessageStatus
	switch strings.ToLower(status.Status) {
	case "sent":
		kind = models.MessageSent
	case "delivered":
		kind = models.MessageDelivered
	case "read":
		kind = models.MessageRead
	case "failed":
		kind = models.MessageFailed
	default:
		return database.StatusUpdate{}, false
	}
	if status.ID == "" {
		return database.StatusUpdate{}, false
	}

	update := database.StatusUpdate{
		MetaMessageID: status.ID,
		Status:        kind,
		At:            h.now(),
	}
	if secs, err := strconv.ParseInt(status.Timestamp, 10, 64); err == nil {
		update.At = time.Unix(secs, 0).UTC()
	}
	if kind == models.MessageFailed {
		update.ErrorMessage = "Unknown error"
		if len(status.Errors) > 0 && status.Errors[0].Message != "" {
			update.ErrorMessage = status.Errors[0].Message
		}
	}
	return update, true
}
