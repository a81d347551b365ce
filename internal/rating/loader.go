package rating

import (
	"context"
	"log/slog"

	"captionrate/internal/caption"
	"captionrate/internal/logging"
)

// Source is the part of caption.Service the loader needs.
type Source interface {
	Page(ctx context.Context, page int) ([]caption.Caption, error)
	ImageURLs(ctx context.Context, ids []string) (map[string]string, error)
}

type Loader struct {
	Source Source
	Logger *slog.Logger
}

// Load fetches the deck's current page and its images and applies them.
// Query errors leave an empty page behind. It reports whether the result was applied.
func (l *Loader) Load(ctx context.Context, d *Deck) bool {
	t := d.Begin(d.Page())

	captions, err := l.Source.Page(ctx, t.Page)
	if err != nil {
		captions = []caption.Caption{}
	}

	images, err := l.Source.ImageURLs(ctx, caption.UniqueImageIDs(captions))
	if err != nil {
		images = map[string]string{}
	}

	if !d.Apply(t, captions, images) {
		logging.OrDefault(l.Logger).Debug("discarded stale caption page", "page", t.Page)
		return false
	}
	return true
}

// Ensure loads the deck only when its current page has not been applied yet.
func (l *Loader) Ensure(ctx context.Context, d *Deck) {
	if !d.Loaded() {
		l.Load(ctx, d)
	}
}
