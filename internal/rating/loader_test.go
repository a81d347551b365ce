package rating

import (
	"context"
	"errors"
	"testing"

	"captionrate/internal/caption"
	"captionrate/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	pages     map[int][]caption.Caption
	urls      map[string]string
	pageErr   error
	requested []int
	beforeURL func()
}

func (s *stubSource) Page(_ context.Context, page int) ([]caption.Caption, error) {
	s.requested = append(s.requested, page)
	if s.pageErr != nil {
		return []caption.Caption{}, s.pageErr
	}
	return s.pages[page], nil
}

func (s *stubSource) ImageURLs(_ context.Context, ids []string) (map[string]string, error) {
	if s.beforeURL != nil {
		s.beforeURL()
	}
	out := map[string]string{}
	for _, id := range ids {
		if u, ok := s.urls[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func TestLoader_LoadAppliesPage(t *testing.T) {
	caps, urls := page("c", 3)
	src := &stubSource{pages: map[int][]caption.Caption{0: caps}, urls: urls}
	l := &Loader{Source: src, Logger: testutil.Logger()}
	d := NewDeck()

	require.True(t, l.Load(context.Background(), d))
	assert.True(t, d.Loaded())
	assert.Len(t, d.Visible(), 2)

	l.Ensure(context.Background(), d)
	assert.Equal(t, []int{0}, src.requested, "Ensure must not refetch a loaded page")
}

func TestLoader_LoadMoreFetchesNextPage(t *testing.T) {
	p0, u0 := page("a", 1)
	p1, u1 := page("b", 2)
	for k, v := range u1 {
		u0[k] = v
	}
	src := &stubSource{pages: map[int][]caption.Caption{0: p0, 1: p1}, urls: u0}
	l := &Loader{Source: src}
	d := NewDeck()

	l.Ensure(context.Background(), d)
	d.Advance("a01")
	require.True(t, d.Exhausted())

	d.LoadMore()
	l.Ensure(context.Background(), d)
	assert.Equal(t, []int{0, 1}, src.requested)
	cards := d.Visible()
	require.NotEmpty(t, cards)
	assert.Equal(t, "b01", cards[0].Caption.ID)
}

func TestLoader_QueryErrorLeavesEmptyPage(t *testing.T) {
	src := &stubSource{pageErr: errors.New("boom")}
	l := &Loader{Source: src, Logger: testutil.Logger()}
	d := NewDeck()

	require.True(t, l.Load(context.Background(), d))
	assert.True(t, d.Loaded())
	assert.Empty(t, d.Visible())
	assert.True(t, d.Exhausted())
}

func TestLoader_DiscardsResultOvertakenByNewerFetch(t *testing.T) {
	caps, urls := page("c", 2)
	src := &stubSource{pages: map[int][]caption.Caption{0: caps}, urls: urls}
	l := &Loader{Source: src, Logger: testutil.Logger()}
	d := NewDeck()

	// A second fetch starts while the first is between its two queries.
	src.beforeURL = func() {
		src.beforeURL = nil
		require.True(t, l.Load(context.Background(), d))
	}
	assert.False(t, l.Load(context.Background(), d))
	assert.True(t, d.Loaded())
}

func TestLoader_WithCaptionService(t *testing.T) {
	gdb := testutil.NewDB(t, &caption.Image{}, &caption.Caption{})
	require.NoError(t, gdb.Create(&caption.Image{ID: "i1", URL: "https://cdn.example.com/i1.jpg"}).Error)
	require.NoError(t, gdb.Create(&caption.Caption{ID: "c1", ImageID: "i1", Caption: "shown"}).Error)
	require.NoError(t, gdb.Create(&caption.Caption{ID: "c2", ImageID: "missing", Caption: "hidden"}).Error)

	l := &Loader{Source: &caption.Service{DB: gdb, Logger: testutil.Logger()}}
	d := NewDeck()
	require.True(t, l.Load(context.Background(), d))

	cards := d.Visible()
	require.Len(t, cards, 1)
	assert.Equal(t, "c1", cards[0].Caption.ID)
	assert.Equal(t, "https://cdn.example.com/i1.jpg", cards[0].ImageURL)
}
