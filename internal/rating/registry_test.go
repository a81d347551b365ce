package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_OneDeckPerProfile(t *testing.T) {
	r := NewRegistry(time.Minute)

	a := r.Get("p1")
	assert.Same(t, a, r.Get("p1"))
	assert.NotSame(t, a, r.Get("p2"))
	assert.Equal(t, 2, r.Len())

	r.Drop("p1")
	assert.NotSame(t, a, r.Get("p1"))
}

func TestRegistry_Expires(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	a := r.Get("p1")

	time.Sleep(40 * time.Millisecond)
	assert.NotSame(t, a, r.Get("p1"))
}
