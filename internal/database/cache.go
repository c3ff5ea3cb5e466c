package database

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"whatsapp-sequencer/internal/models"
)

// CachedStore serves template lookups from memory for ttl. Templates are
// read-only to the engine, so staleness is bounded by ttl.
type CachedStore struct {
	*Store
	templates *cache.Cache
}

func NewCachedStore(store *Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store:     store,
		templates: cache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	if cached, ok := s.templates.Get(id); ok {
		tmpl := *cached.(*models.Template)
		return &tmpl, nil
	}

	tmpl, err := s.Store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	stored := *tmpl
	s.templates.SetDefault(id, &stored)
	return tmpl, nil
}
