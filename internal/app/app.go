// Package app wires configuration, storage, delivery and the scheduler into
// one runnable service shared by the server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"whatsapp-sequencer/internal/api"
	"whatsapp-sequencer/internal/chatwoot"
	"whatsapp-sequencer/internal/config"
	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/delivery"
	"whatsapp-sequencer/internal/logging"
	"whatsapp-sequencer/internal/scheduler"
	"whatsapp-sequencer/internal/sequence"
	"whatsapp-sequencer/internal/webhook"
	"whatsapp-sequencer/internal/whatsapp"
	"whatsapp-sequencer/internal/ws"
)

type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *gorm.DB
	Store     *database.Store
	Hub       *ws.Hub
	Engine    *sequence.Engine
	Scheduler *scheduler.Scheduler
	Webhook   *webhook.Handler
}

// New opens the database, migrates it and builds every component. The
// scheduler uses the cron trigger only when SchedulerEnabled is set; otherwise
// ticks run on demand.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	component := func(module string) *logrus.Entry {
		return logging.Component(logger, cfg.Env, module)
	}

	db, err := database.Open(cfg, component("database"))
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	store := database.NewStore(db)

	var engineStore sequence.Store = store
	if cfg.TemplateCacheTTL > 0 {
		engineStore = database.NewCachedStore(store, cfg.TemplateCacheTTL)
	}

	metaClient := whatsapp.NewClient(whatsapp.Options{
		BaseURL:       cfg.MetaAPIBaseURL,
		APIVersion:    cfg.MetaAPIVersion,
		Timeout:       cfg.HTTPTimeout,
		RatePerSecond: cfg.MetaRatePerSecond,
	})
	chatwootClient := chatwoot.NewClient(chatwoot.Options{
		BaseURL:       cfg.ChatwootBaseURL,
		Timeout:       cfg.HTTPTimeout,
		RatePerSecond: cfg.ChatwootRatePerSecond,
	})
	router := delivery.NewRouter(delivery.NewMetaSender(metaClient), delivery.NewChatwootSender(chatwootClient))

	offers := sequence.NewOfferResolver(chatwootClient, store, chatwoot.EnvCredentials{
		AccountID:      cfg.ChatwootAccountID,
		APIAccessToken: cfg.ChatwootAPIAccessToken,
		Label:          cfg.ChatwootAccountLabel,
		PhoneNumber:    cfg.ChatwootAccountPhone,
	}, cfg.OfferEnvFallback, component("offers"))

	hub := ws.NewHub(component("websocket"))
	engine := sequence.NewEngine(engineStore, router, offers, hub, component("sequence"))

	var trigger scheduler.Trigger = &scheduler.ManualTrigger{}
	if cfg.SchedulerEnabled {
		trigger = scheduler.NewCronTrigger(cfg.SchedulerCron)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Store:     store,
		Hub:       hub,
		Engine:    engine,
		Scheduler: scheduler.New(trigger, store, engine, component("message-scheduler")),
		Webhook:   webhook.NewHandler(cfg.VerifyToken, store, hub, component("webhook")),
	}, nil
}

// Router returns the HTTP surface for this app.
func (a *App) Router() *gin.Engine {
	return api.NewRouter(api.Dependencies{
		Store:   a.Store,
		Runner:  a.Scheduler,
		Webhook: a.Webhook,
		Hub:     a.Hub,
		Log:     logging.Component(a.Logger, a.Config.Env, "api"),
	})
}

// Start runs the hub and the scheduler until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	go a.Hub.Run(ctx)
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Close stops the scheduler, waiting for a running tick up to ctx, and
// closes the database.
func (a *App) Close(ctx context.Context) error {
	a.Scheduler.Stop(ctx)
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
