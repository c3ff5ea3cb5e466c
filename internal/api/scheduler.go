package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/logging"
	"whatsapp-sequencer/internal/scheduler"
)

type SchedulerHandler struct {
	runner Runner
	log    *logrus.Entry
}

func NewSchedulerHandler(runner Runner, log *logrus.Entry) *SchedulerHandler {
	return &SchedulerHandler{runner: runner, log: log}
}

// RunTick processes due subscriptions now instead of waiting for the cron.
func (h *SchedulerHandler) RunTick(c *gin.Context) {
	report, err := h.runner.RunTick(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrTickInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		logging.ReportError(h.log, "Manual scheduler tick failed", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *SchedulerHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Stats())
}
