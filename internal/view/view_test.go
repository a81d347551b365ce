package view

import (
	"bytes"
	"strings"
	"testing"

	"captionrate/internal/auth"
	"captionrate/internal/caption"
	"captionrate/internal/rating"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, page string, data Data) string {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, page, data))
	return buf.String()
}

var signedIn = &auth.User{ID: "p1", Email: "rater@example.com"}

func TestPriorityBadge(t *testing.T) {
	tests := []struct {
		priority int
		want     string
	}{
		{5, "red"},
		{3, "red"},
		{2, "amber"},
		{1, "green"},
		{0, "gray"},
		{-1, "gray"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityBadge(tt.priority), "priority %d", tt.priority)
	}
}

func TestRender_Landing(t *testing.T) {
	out := render(t, PageLanding, Data{})
	assert.Contains(t, out, "Sign in with Google")
	assert.NotContains(t, out, "Sign Out")
}

func TestRender_NavbarWhenSignedIn(t *testing.T) {
	out := render(t, PageTable, Data{User: signedIn, Tab: rating.TabTable})
	assert.Contains(t, out, "rater@example.com")
	assert.Contains(t, out, "Sign Out")
	assert.Contains(t, out, `href="/table" class="active"`)
}

func TestRender_RateShowsTopTwoCards(t *testing.T) {
	d := rating.NewDeck()
	caps := []caption.Caption{
		{ID: "c1", ImageID: "i1", Caption: "first"},
		{ID: "c2", ImageID: "i2", Caption: "second"},
		{ID: "c3", ImageID: "i3", Caption: "third"},
		{ID: "c4", ImageID: "gone", Caption: "orphan"},
	}
	urls := map[string]string{"i1": "/objects/1.png", "i2": "/objects/2.png", "i3": "/objects/3.png"}
	require.True(t, d.Apply(d.Begin(0), caps, urls))

	out := render(t, PageRate, Data{User: signedIn, Tab: rating.TabRating, Deck: d.State()})
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "third")
	assert.NotContains(t, out, "orphan")
	assert.Equal(t, 1, strings.Count(out, `action="/rate/vote"`), "only the top card takes votes")
	assert.NotContains(t, out, "Load More")
}

func TestRender_RateExhaustedShowsLoadMore(t *testing.T) {
	d := rating.NewDeck()
	require.True(t, d.Apply(d.Begin(0), []caption.Caption{{ID: "c1", ImageID: "i1"}}, map[string]string{"i1": "/objects/1.png"}))
	d.Advance("c1")

	out := render(t, PageRate, Data{User: signedIn, Tab: rating.TabRating, Deck: d.State()})
	assert.Contains(t, out, "Load More")
	assert.Contains(t, out, `action="/rate/more"`)
}

func TestRender_TableBadges(t *testing.T) {
	out := render(t, PageTable, Data{User: signedIn, Examples: []caption.Example{
		{ID: "e1", Caption: "urgent", Priority: 3},
		{ID: "e2", Caption: "meh", Priority: 0},
	}})
	assert.Contains(t, out, `class="badge red"`)
	assert.Contains(t, out, `class="badge gray"`)
	assert.Contains(t, out, "urgent")
}

func TestRender_UploadAlertAndList(t *testing.T) {
	thumb := "/objects/p1/1.png.thumb.jpg"
	out := render(t, PageUpload, Data{
		User:     signedIn,
		Alert:    "Upload failed: not an image",
		MaxBytes: 10 << 20,
		Uploads:  []caption.Image{{ID: "img1", URL: "/objects/p1/1.png", ThumbnailURL: &thumb}},
	})
	assert.Contains(t, out, `role="alert"`)
	assert.Contains(t, out, "Upload failed: not an image")
	assert.Contains(t, out, `action="/upload/img1/delete"`)
	assert.Contains(t, out, thumb)
	assert.Contains(t, out, "Up to 10 MiB")
}

func TestRender_EscapesCaptionText(t *testing.T) {
	d := rating.NewDeck()
	require.True(t, d.Apply(d.Begin(0), []caption.Caption{{ID: "c1", ImageID: "i1", Caption: "<script>x</script>"}}, map[string]string{"i1": "/objects/1.png"}))

	out := render(t, PageRate, Data{User: signedIn, Deck: d.State()})
	assert.NotContains(t, out, "<script>x</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRender_UnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, "nope", Data{}))
}
