package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Trigger calls a function on a schedule.
type Trigger interface {
	Schedule(fn func()) error
	Start()
	// Stop halts the schedule. The returned context is done once running
	// calls have returned.
	Stop() context.Context
}

// CronTrigger fires fn on a standard five-field cron spec.
type CronTrigger struct {
	cron *cron.Cron
	spec string
}

func NewCronTrigger(spec string) *CronTrigger {
	return &CronTrigger{cron: cron.New(), spec: spec}
}

func (t *CronTrigger) Schedule(fn func()) error {
	_, err := t.cron.AddFunc(t.spec, fn)
	return err
}

func (t *CronTrigger) Start() {
	t.cron.Start()
}

func (t *CronTrigger) Stop() context.Context {
	return t.cron.Stop()
}

// ManualTrigger fires only when Fire is called.
type ManualTrigger struct {
	fns []func()
}

func (t *ManualTrigger) Schedule(fn func()) error {
	t.fns = append(t.fns, fn)
	return nil
}

func (t *ManualTrigger) Start() {}

// Stop returns an already finished context; there is never a tick in flight
// that Fire's caller is not already waiting on.
func (t *ManualTrigger) Stop() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// Fire runs every scheduled function on the calling goroutine.
func (t *ManualTrigger) Fire() {
	for _, fn := range t.fns {
		fn()
	}
}
