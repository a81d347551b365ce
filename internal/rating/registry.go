package rating

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultDeckTTL = time.Hour

// Registry keeps one deck per profile. Reading a deck extends its lifetime.
type Registry struct {
	mu    sync.Mutex
	decks *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultDeckTTL
	}
	return &Registry{decks: cache.New(ttl, ttl/2)}
}

// Get returns the profile's deck, creating it on first use.
func (r *Registry) Get(profileID string) *Deck {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.decks.Get(profileID); ok {
		d := v.(*Deck)
		r.decks.SetDefault(profileID, d)
		return d
	}
	d := NewDeck()
	r.decks.SetDefault(profileID, d)
	return d
}

func (r *Registry) Drop(profileID string) {
	r.decks.Delete(profileID)
}

func (r *Registry) Len() int {
	return r.decks.ItemCount()
}
