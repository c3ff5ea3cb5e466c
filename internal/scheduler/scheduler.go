// Package scheduler runs the subscription step engine on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/logging"
	"whatsapp-sequencer/internal/models"
	"whatsapp-sequencer/internal/sequence"
)

var ErrTickInProgress = errors.New("a scheduler tick is already running")

// Store loads subscriptions for the engine.
type Store interface {
	DueSubscriptions(ctx context.Context, now time.Time) ([]models.SequenceSubscription, error)
	GetSubscription(ctx context.Context, id string) (*models.SequenceSubscription, error)
}

// Processor advances one subscription.
type Processor interface {
	Process(ctx context.Context, sub *models.SequenceSubscription) (sequence.Outcome, error)
}

// TickReport counts what happened to the subscriptions found in one tick.
// Failed counts subscriptions whose processing returned an error; Aborted
// counts those stopped by a failed message.
type TickReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Found     int           `json:"found"`
	Processed int           `json:"processed"`
	Completed int           `json:"completed"`
	Aborted   int           `json:"aborted"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}

// Stats are cumulative since the scheduler was created.
type Stats struct {
	Ticks           int64       `json:"ticks"`
	OverlapsSkipped int64       `json:"overlaps_skipped"`
	Running         bool        `json:"running"`
	LastTick        *TickReport `json:"last_tick,omitempty"`
	LastError       string      `json:"last_error,omitempty"`
}

type Scheduler struct {
	trigger   Trigger
	store     Store
	processor Processor
	log       *logrus.Entry
	now       func() time.Time

	running atomic.Bool
	ticks   atomic.Int64
	skipped atomic.Int64

	mu       sync.Mutex
	lastTick *TickReport
	lastErr  string
}

func New(trigger Trigger, store Store, processor Processor, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		trigger:   trigger,
		store:     store,
		processor: processor,
		log:       log,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for the due query.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start registers the tick with the trigger and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.trigger.Schedule(func() { s.onTrigger(ctx) }); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.trigger.Start()
	s.log.Info("Message scheduler initialized and awaiting first tick")
	return nil
}

// Stop halts the trigger and waits for a running tick, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.trigger.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before the running tick finished")
	}
}

func (s *Scheduler) onTrigger(ctx context.Context) {
	report, err := s.RunTick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.log.Warn("Previous scheduler tick still running; skipping this one")
	case err != nil && !errors.Is(err, context.Canceled):
		logging.ReportError(s.log, "Scheduler error", err, logrus.Fields{"run_started_at": report.StartedAt.Format(time.RFC3339)})
	}
}

// RunTick processes every due subscription once, in query order. A
// subscription that fails is logged and counted; it never stops the tick.
// ErrTickInProgress is returned when another tick holds the guard.
func (s *Scheduler) RunTick(ctx context.Context) (TickReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return TickReport{}, ErrTickInProgress
	}
	defer s.running.Store(false)

	report := TickReport{StartedAt: s.now()}
	log := s.log.WithField("run_started_at", report.StartedAt.Format(time.RFC3339))
	log.Info("Running message scheduler tick")

	subs, err := s.store.DueSubscriptions(ctx, report.StartedAt)
	if err != nil {
		s.finish(report, err)
		return report, err
	}
	report.Found = len(subs)
	log.WithField("count", report.Found).Info("Located subscriptions ready to process")

	for i := range subs {
		if ctx.Err() != nil {
			break
		}
		outcome, err := s.processor.Process(ctx, &subs[i])
		if err != nil {
			report.Failed++
			logging.ReportError(log.WithField("subscription_id", subs[i].ID), "Error processing subscription", err, nil)
			continue
		}
		report.Processed++
		switch outcome {
		case sequence.OutcomeCompleted:
			report.Completed++
		case sequence.OutcomeAborted:
			report.Aborted++
		case sequence.OutcomeSkipped:
			report.Skipped++
		}
	}

	report.Duration = s.now().Sub(report.StartedAt)
	log.WithFields(logrus.Fields{
		"found":     report.Found,
		"processed": report.Processed,
		"failed":    report.Failed,
		"aborted":   report.Aborted,
	}).Info("Message scheduler tick finished")

	s.finish(report, ctx.Err())
	return report, ctx.Err()
}

// ProcessOne runs the engine for a single subscription. It shares the tick
// guard, so it returns ErrTickInProgress while a tick is running.
func (s *Scheduler) ProcessOne(ctx context.Context, id string) (sequence.Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrTickInProgress
	}
	defer s.running.Store(false)

	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return "", err
	}
	return s.processor.Process(ctx, sub)
}

func (s *Scheduler) finish(report TickReport, err error) {
	s.ticks.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = &report
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{
		Ticks:           s.ticks.Load(),
		OverlapsSkipped: s.skipped.Load(),
		Running:         s.running.Load(),
		LastError:       s.lastErr,
	}
	if s.lastTick != nil {
		last := *s.lastTick
		stats.LastTick = &last
	}
	return stats
}
