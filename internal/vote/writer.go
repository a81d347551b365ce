// Package vote writes votes in the background so the rating view can move on
// without waiting for the insert.
package vote

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"captionrate/internal/caption"
	"captionrate/internal/logging"
	"captionrate/internal/metrics"
)

var ErrStopped = errors.New("vote writer stopped")

const (
	defaultQueueSize   = 256
	defaultMaxAttempts = 3
	defaultBackoff     = 200 * time.Millisecond
	flushTimeout       = 5 * time.Second
)

type Store interface {
	CastVote(ctx context.Context, v caption.Vote) error
}

type Writer struct {
	Store       Store
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	MaxAttempts int
	Backoff     time.Duration
	Now         func() time.Time

	queue   chan caption.Vote
	closing chan struct{}
	mu      sync.RWMutex
	stopped bool
}

func NewWriter(store Store, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Writer{
		Store:       store,
		MaxAttempts: defaultMaxAttempts,
		Backoff:     defaultBackoff,
		queue:       make(chan caption.Vote, queueSize),
		closing:     make(chan struct{}),
	}
}

// Submit stamps the vote with the writer clock and queues it.
// It returns once queued, not once written.
func (w *Writer) Submit(ctx context.Context, v caption.Vote) error {
	if v.Value != 1 && v.Value != -1 {
		return caption.ErrInvalidVote
	}
	if v.ProfileID == "" {
		return caption.ErrMissingActor
	}

	now := w.now().UTC()
	v.CreatedAt = now
	v.ModifiedAt = now

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}

	select {
	case w.queue <- v:
		w.Metrics.Vote(v.Value, "queued")
		return nil
	case <-w.closing:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run writes queued votes until ctx is cancelled, then flushes what is left.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.shutdown(ctx)
			return
		case v := <-w.queue:
			if ctx.Err() != nil {
				w.shutdown(ctx, v)
				return
			}
			w.write(ctx, v)
		}
	}
}

func (w *Writer) shutdown(ctx context.Context, pending ...caption.Vote) {
	close(w.closing)

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	for _, v := range pending {
		w.write(flushCtx, v)
	}
	n := len(pending)
	for {
		select {
		case v := <-w.queue:
			w.write(flushCtx, v)
			n++
		default:
			if n > 0 {
				w.logger().Info("flushed queued votes", "count", n)
			}
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, v caption.Vote) {
	attempts := 0
	for {
		err := w.Store.CastVote(ctx, v)
		if err == nil {
			w.Metrics.Vote(v.Value, "written")
			return
		}
		attempts++

		if errors.Is(err, caption.ErrInvalidVote) || errors.Is(err, caption.ErrMissingActor) ||
			attempts >= w.maxAttempts() || ctx.Err() != nil {
			w.logger().Error("vote dropped",
				"caption_id", v.CaptionID,
				"profile_id", v.ProfileID,
				"attempts", attempts,
				"error", err,
			)
			w.Metrics.Vote(v.Value, "dropped")
			return
		}

		wait := time.Duration(math.Pow(2, float64(attempts-1))) * w.Backoff
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			w.logger().Error("vote dropped",
				"caption_id", v.CaptionID,
				"profile_id", v.ProfileID,
				"attempts", attempts,
				"error", err,
				"cause", ctx.Err(),
			)
			w.Metrics.Vote(v.Value, "dropped")
			return
		case <-t.C:
		}
	}
}

func (w *Writer) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return w.MaxAttempts
}

func (w *Writer) logger() *slog.Logger {
	return logging.OrDefault(w.Logger)
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
