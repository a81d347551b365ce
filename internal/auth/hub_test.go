package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHub_PublishReachesOnlyThatProfile(t *testing.T) {
	h := NewHub()
	a1 := h.Subscribe("a")
	a2 := h.Subscribe("a")
	b := h.Subscribe("b")
	defer a1.Unsubscribe()
	defer a2.Unsubscribe()
	defer b.Unsubscribe()

	n := h.Publish("a", Event{Type: EventSignedOut})
	assert.Equal(t, 2, n)

	for _, s := range []*Subscription{a1, a2} {
		select {
		case ev := <-s.C:
			assert.Equal(t, EventSignedOut, ev.Type)
			assert.False(t, ev.At.IsZero())
		default:
			t.Fatal("expected an event")
		}
	}
	select {
	case ev := <-b.C:
		t.Fatalf("unexpected event for b: %+v", ev)
	default:
	}
}

func TestHub_UnsubscribeClosesAndForgets(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("a")
	require.Equal(t, 1, h.Subscribers("a"))

	s.Unsubscribe()
	s.Unsubscribe()

	_, open := <-s.C
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("a"))
	assert.Equal(t, 0, h.Publish("a", Event{Type: EventSignedIn}))
}

func TestHub_PublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	// OAuth state caches from other tests keep their janitor running.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))

	h := NewHub()
	s := h.Subscribe("a")
	defer s.Unsubscribe()

	delivered := 0
	for i := 0; i < 20; i++ {
		delivered += h.Publish("a", Event{Type: EventSignedIn})
	}
	assert.Equal(t, cap(s.ch), delivered)
}
