package auth

import (
	"sync"
	"time"
)

// Session change kinds delivered to subscribers.
const (
	EventSignedIn  = "signed_in"
	EventSignedOut = "signed_out"
)

type Event struct {
	Type string    `json:"event"`
	User *User     `json:"user,omitempty"`
	At   time.Time `json:"at"`
}

// Hub fans session changes out to every open subscription of a profile.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

type Subscription struct {
	C <-chan Event

	hub    *Hub
	userID string
	ch     chan Event
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan Event, 8)
	s := &Subscription{C: ch, hub: h, userID: userID, ch: ch}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the subscription and closes C. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.userID)
			}
		}
		close(s.ch)
		h.mu.Unlock()
	})
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (h *Hub) Publish(userID string, ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for s := range h.subs[userID] {
		select {
		case s.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers counts open subscriptions for a profile.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
