package sequence

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"whatsapp-sequencer/internal/chatwoot"
	"whatsapp-sequencer/internal/models"
)

var ErrOfferUnresolved = errors.New("offer could not be resolved")

const maxOfferDepth = 6

// FindOffer searches a decoded JSON tree for the first non-empty scalar under
// a key containing "offer" (case-insensitive). At each object, matching keys
// are checked before nested objects are walked. The walk stops below depth 6.
// Object keys are visited in sorted order so results are stable.
//
// Arrays are walked element by element and a bare scalar element is taken as
// the offer wherever the array sits, so {"labels":["vip"]} yields "vip" when
// no offer key is found first. This is a heuristic over payloads this system
// does not control.
func FindOffer(value interface{}) string {
	return findOffer(value, 0)
}

func findOffer(value interface{}, depth int) string {
	if depth > maxOfferDepth || value == nil {
		return ""
	}
	if s, ok := models.Scalar(value); ok {
		return strings.TrimSpace(s)
	}

	switch t := value.(type) {
	case []interface{}:
		for _, item := range t {
			if found := findOffer(item, depth+1); found != "" {
				return found
			}
		}
		return ""
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !strings.Contains(strings.ToLower(k), "offer") {
				continue
			}
			if s, ok := models.Scalar(t[k]); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
			if found := findOffer(t[k], depth+1); found != "" {
				return found
			}
		}
		for _, k := range keys {
			switch t[k].(type) {
			case map[string]interface{}, []interface{}:
				if found := findOffer(t[k], depth+1); found != "" {
					return found
				}
			}
		}
	}
	return ""
}

// ChatwootLookup fetches linked Chatwoot records as untyped JSON.
type ChatwootLookup interface {
	Contact(ctx context.Context, creds chatwoot.Credentials, contactID string) (interface{}, error)
	Conversation(ctx context.Context, creds chatwoot.Credentials, conversationID string) (interface{}, error)
}

// OfferStore persists a resolved offer on the contact.
type OfferStore interface {
	UpdateContactOffer(ctx context.Context, contactID, offer string) error
}

// OfferResolver finds a contact's offer locally or from Chatwoot.
type OfferResolver struct {
	lookup           ChatwootLookup
	store            OfferStore
	env              chatwoot.EnvCredentials
	allowEnvFallback bool
	log              *logrus.Entry
}

func NewOfferResolver(lookup ChatwootLookup, store OfferStore, env chatwoot.EnvCredentials, allowEnvFallback bool, log *logrus.Entry) *OfferResolver {
	return &OfferResolver{
		lookup:           lookup,
		store:            store,
		env:              env,
		allowEnvFallback: allowEnvFallback,
		log:              log,
	}
}

// Resolve returns the contact's offer. A value found in Chatwoot is saved on
// the contact; a failed save is logged and the value is still returned.
// ErrOfferUnresolved means neither the contact nor Chatwoot had one.
func (r *OfferResolver) Resolve(ctx context.Context, account *models.MetaAccount, contact *models.Contact) (string, error) {
	if offer := contact.OfferValue(); offer != "" {
		return offer, nil
	}

	creds := chatwoot.ResolveCredentials(account, r.env, r.allowEnvFallback)
	if creds == nil || r.lookup == nil {
		return "", ErrOfferUnresolved
	}

	log := r.log.WithFields(logrus.Fields{"contact_id": contact.ID, "chatwoot_source": creds.Source})

	for _, fetch := range r.lookups(contact) {
		tree, err := fetch(ctx, *creds)
		if err != nil {
			log.WithError(err).Warn("Chatwoot offer lookup failed")
			continue
		}
		offer := FindOffer(tree)
		if offer == "" {
			continue
		}

		if err := r.store.UpdateContactOffer(ctx, contact.ID, offer); err != nil {
			log.WithError(err).Warn("Failed to persist resolved offer")
		}
		return offer, nil
	}
	return "", ErrOfferUnresolved
}

type lookupFunc func(ctx context.Context, creds chatwoot.Credentials) (interface{}, error)

// lookups lists the Chatwoot records to search, contact first.
func (r *OfferResolver) lookups(contact *models.Contact) []lookupFunc {
	var fns []lookupFunc
	if id := value(contact.ChatwootContactID); id != "" {
		fns = append(fns, func(ctx context.Context, creds chatwoot.Credentials) (interface{}, error) {
			return r.lookup.Contact(ctx, creds, id)
		})
	}
	if id := value(contact.ChatwootConversationID); id != "" {
		fns = append(fns, func(ctx context.Context, creds chatwoot.Credentials) (interface{}, error) {
			return r.lookup.Conversation(ctx, creds, id)
		})
	}
	return fns
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
