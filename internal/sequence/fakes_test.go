package sequence

import (
	"context"
	"sync"
	"time"

	"whatsapp-sequencer/internal/chatwoot"
	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/delivery"
	"whatsapp-sequencer/internal/models"
)

type completion struct {
	id                string
	completedAt       time.Time
	lastMessageSentAt *time.Time
}

type advance struct {
	id  string
	adv database.Advance
}

type fakeStore struct {
	mu          sync.Mutex
	templates   map[string]*models.Template
	sent        []models.SentMessage
	completions []completion
	advances    []advance
	offers      map[string]string

	templateErr error
	createErr   error
	advanceErr  error
	offerErr    error
}

func newFakeStore(templates ...models.Template) *fakeStore {
	s := &fakeStore{templates: map[string]*models.Template{}, offers: map[string]string{}}
	for i := range templates {
		s.templates[templates[i].ID] = &templates[i]
	}
	return s
}

func (s *fakeStore) GetTemplate(_ context.Context, id string) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templateErr != nil {
		return nil, s.templateErr
	}
	tmpl, ok := s.templates[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *tmpl
	return &copied, nil
}

func (s *fakeStore) CreateSentMessage(ctx context.Context, msg *models.SentMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.sent = append(s.sent, *msg)
	return nil
}

func (s *fakeStore) CompleteSubscription(ctx context.Context, id string, completedAt time.Time, lastMessageSentAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, completion{id: id, completedAt: completedAt, lastMessageSentAt: lastMessageSentAt})
	return nil
}

func (s *fakeStore) AdvanceSubscription(ctx context.Context, id string, adv database.Advance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceErr != nil {
		return s.advanceErr
	}
	s.advances = append(s.advances, advance{id: id, adv: adv})
	return nil
}

func (s *fakeStore) UpdateContactOffer(_ context.Context, contactID, offer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offerErr != nil {
		return s.offerErr
	}
	s.offers[contactID] = offer
	return nil
}

// fakeSender fails the calls whose index is in failures. onSend runs after
// each call is recorded.
type fakeSender struct {
	mu       sync.Mutex
	messages []delivery.Message
	ctxErrs  []error
	failures map[int]error
	onSend   func()
}

func (f *fakeSender) Send(ctx context.Context, msg delivery.Message) (delivery.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.messages)
	f.messages = append(f.messages, msg)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.onSend != nil {
		f.onSend()
	}
	if err, ok := f.failures[call]; ok {
		return delivery.Result{Backend: delivery.BackendMeta}, err
	}
	return delivery.Result{MessageID: "wamid." + msg.Template.ID, Backend: delivery.BackendMeta}, nil
}

type event struct {
	kind string
	data interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *fakeNotifier) BroadcastEvent(eventType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: eventType, data: data})
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.kind)
	}
	return out
}

type lookupCall struct {
	kind string
	id   string
}

type fakeLookup struct {
	mu            sync.Mutex
	calls         []lookupCall
	contacts      map[string]interface{}
	conversations map[string]interface{}
	contactErr    error
}

func (f *fakeLookup) Contact(_ context.Context, _ chatwoot.Credentials, id string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lookupCall{kind: "contact", id: id})
	if f.contactErr != nil {
		return nil, f.contactErr
	}
	return f.contacts[id], nil
}

func (f *fakeLookup) Conversation(_ context.Context, _ chatwoot.Credentials, id string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lookupCall{kind: "conversation", id: id})
	return f.conversations[id], nil
}
