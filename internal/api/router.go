// Package api exposes the operator HTTP surface: subscription management,
// on-demand scheduler runs, the Meta webhook and the live event socket.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/webhook"
	"whatsapp-sequencer/internal/ws"
)

type Dependencies struct {
	Store   SubscriptionStore
	Runner  Runner
	Webhook *webhook.Handler
	Hub     *ws.Hub
	Log     *logrus.Entry
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NewRouter builds the gin engine. Webhook and Hub are optional.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors())

	subscriptionHandler := NewSubscriptionHandler(deps.Store, deps.Runner, deps.Log.WithField("handler", "subscriptions"))
	schedulerHandler := NewSchedulerHandler(deps.Runner, deps.Log.WithField("handler", "scheduler"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Webhook Routes
	if deps.Webhook != nil {
		r.GET("/webhook", deps.Webhook.VerifyWebhook)
		r.POST("/webhook", deps.Webhook.HandleStatus)
	}

	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/subscriptions", subscriptionHandler.GetSubscriptions)
		apiGroup.POST("/subscriptions", subscriptionHandler.CreateSubscription)
		apiGroup.POST("/subscriptions/bulk-unsubscribe", subscriptionHandler.BulkUnsubscribe)
		apiGroup.DELETE("/subscriptions/:id", subscriptionHandler.CancelSubscription)
		apiGroup.PUT("/subscriptions/:id/pause", subscriptionHandler.PauseSubscription)
		apiGroup.PUT("/subscriptions/:id/resume", subscriptionHandler.ResumeSubscription)
		apiGroup.POST("/subscriptions/:id/send-now", subscriptionHandler.SendNow)
		apiGroup.GET("/subscriptions/:id/messages", subscriptionHandler.GetMessages)

		apiGroup.POST("/scheduler/tick", schedulerHandler.RunTick)
		apiGroup.GET("/scheduler/stats", schedulerHandler.GetStats)
	}

	return r
}
