package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/delivery"
	"whatsapp-sequencer/internal/models"
	"whatsapp-sequencer/internal/sequence"
)

type recordingSender struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingSender) Send(_ context.Context, msg delivery.Message) (delivery.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, msg.Template.MetaTemplateName)
	return delivery.Result{MessageID: "wamid." + msg.Template.MetaTemplateName, Backend: delivery.BackendMeta}, nil
}

func openStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return database.NewStore(db)
}

func TestTickChainsZeroDelayStepsToCompletion(t *testing.T) {
	store := openStore(t)
	db := store.DB()
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	account := models.MetaAccount{PhoneNumberID: "pn-1", AccessToken: "tok"}
	require.NoError(t, db.Create(&account).Error)
	contact := models.Contact{PhoneNumber: "+15550001111", FirstName: "Ava"}
	require.NoError(t, db.Create(&contact).Error)

	var steps []models.SequenceStep
	for i, name := range []string{"first", "second", "third"} {
		tmpl := models.Template{MetaTemplateName: name, BodyText: "Hi {{1}}", Language: "en_US"}
		require.NoError(t, db.Create(&tmpl).Error)
		steps = append(steps, models.SequenceStep{
			StepOrder:      i + 1,
			TemplateID:     &tmpl.ID,
			VariableValues: models.VariableValues{"1": sequence.RefFirstName},
		})
	}
	seq := models.Sequence{Name: "Burst", IsActive: true, MetaAccountID: account.ID, Steps: steps}
	require.NoError(t, db.Create(&seq).Error)

	sub, err := store.Subscribe(ctx, contact.ID, seq.ID, now, func(models.SequenceStep) time.Time { return now })
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	sender := &recordingSender{}
	engine := sequence.NewEngine(store, sender, nil, nil, entry)
	engine.SetClock(func() time.Time { return now })

	s := New(&ManualTrigger{}, store, engine, entry)
	s.SetClock(func() time.Time { return now })

	report, err := s.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, []string{"first", "second", "third"}, sender.names)

	got, err := store.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 3, got.CurrentStep)

	msgs, err := store.ListSentMessages(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, models.MessageSent, m.Status)
		assert.Equal(t, "meta", m.Backend)
	}

	report, err = s.RunTick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Found)
}

// cancellingSender cancels the tick's context during the first send and
// still reports success, as a shutdown signal arriving mid-request would.
type cancellingSender struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	sends  int
}

func (c *cancellingSender) Send(_ context.Context, msg delivery.Message) (delivery.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	c.cancel()
	return delivery.Result{MessageID: "wamid." + msg.Template.MetaTemplateName, Backend: delivery.BackendMeta}, nil
}

func TestTickRecordsDeliveredMessageWhenCancelledMidSend(t *testing.T) {
	store := openStore(t)
	db := store.DB()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	account := models.MetaAccount{PhoneNumberID: "pn-1", AccessToken: "tok"}
	require.NoError(t, db.Create(&account).Error)
	first := models.Template{MetaTemplateName: "first", Language: "en_US"}
	require.NoError(t, db.Create(&first).Error)
	second := models.Template{MetaTemplateName: "second", Language: "en_US"}
	require.NoError(t, db.Create(&second).Error)
	seq := models.Sequence{Name: "Drip", IsActive: true, MetaAccountID: account.ID, Steps: []models.SequenceStep{
		{StepOrder: 1, TemplateID: &first.ID},
		{StepOrder: 2, DelayValue: 30, DelayUnit: models.DelayMinutes, TemplateID: &second.ID},
	}}
	require.NoError(t, db.Create(&seq).Error)

	var subIDs []string
	for _, phone := range []string{"+15550001111", "+15550002222"} {
		contact := models.Contact{PhoneNumber: phone}
		require.NoError(t, db.Create(&contact).Error)
		sub, err := store.Subscribe(context.Background(), contact.ID, seq.ID, now, func(models.SequenceStep) time.Time { return now })
		require.NoError(t, err)
		subIDs = append(subIDs, sub.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger, _ := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	sender := &cancellingSender{cancel: cancel}
	engine := sequence.NewEngine(store, sender, nil, nil, entry)
	engine.SetClock(func() time.Time { return now })
	s := New(&ManualTrigger{}, store, engine, entry)
	s.SetClock(func() time.Time { return now })

	report, err := s.RunTick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 1, report.Processed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, sender.sends)

	var recorded []models.SentMessage
	advanced := 0
	for _, id := range subIDs {
		msgs, err := store.ListSentMessages(context.Background(), id)
		require.NoError(t, err)
		recorded = append(recorded, msgs...)

		got, err := store.GetSubscription(context.Background(), id)
		require.NoError(t, err)
		if got.CurrentStep == 2 {
			advanced++
			require.NotNil(t, got.NextScheduledAt)
			assert.True(t, got.NextScheduledAt.Equal(now.Add(30*time.Minute)))
		}
	}
	require.Len(t, recorded, 1)
	assert.Equal(t, models.MessageSent, recorded[0].Status)
	require.NotNil(t, recorded[0].MetaMessageID)
	assert.Equal(t, "wamid.first", *recorded[0].MetaMessageID)
	assert.Equal(t, 1, advanced)
}
