package vote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"captionrate/internal/caption"
	"captionrate/internal/metrics"
	"captionrate/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	written  []caption.Vote
}

func (f *fakeStore) CastVote(_ context.Context, v caption.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeStore) snapshot() (int, []caption.Vote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]caption.Vote(nil), f.written...)
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newWriter(t *testing.T, store Store) (*Writer, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	w := NewWriter(store, 8)
	w.Logger = testutil.Logger()
	w.Metrics = m
	w.Backoff = time.Millisecond
	w.Now = func() time.Time { return fixedNow }
	return w, m
}

// start runs the writer and returns a stop func that cancels and waits for Run.
func start(w *Writer) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestWriter_SubmitStampsAndWrites(t *testing.T) {
	store := &fakeStore{}
	w, m := newWriter(t, store)
	stop := start(w)

	require.NoError(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 1}))
	require.NoError(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c2", ProfileID: "p1", Value: -1}))

	require.Eventually(t, func() bool {
		_, written := store.snapshot()
		return len(written) == 2
	}, time.Second, 5*time.Millisecond)
	stop()

	_, written := store.snapshot()
	assert.Equal(t, "c1", written[0].CaptionID)
	assert.Equal(t, -1, written[1].Value)
	for _, v := range written {
		assert.True(t, v.CreatedAt.Equal(fixedNow))
		assert.True(t, v.ModifiedAt.Equal(fixedNow))
	}
	assert.Contains(t, scrape(t, m), `captionrate_votes_total{status="written",value="1"} 1`)
}

func TestWriter_RejectsBadVotes(t *testing.T) {
	w, _ := newWriter(t, &fakeStore{})

	assert.ErrorIs(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 0}), caption.ErrInvalidVote)
	assert.ErrorIs(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 2}), caption.ErrInvalidVote)
	assert.ErrorIs(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", Value: 1}), caption.ErrMissingActor)
}

func TestWriter_RetriesWithBackoff(t *testing.T) {
	store := &fakeStore{failures: 2}
	w, m := newWriter(t, store)
	stop := start(w)

	require.NoError(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 1}))
	require.Eventually(t, func() bool {
		_, written := store.snapshot()
		return len(written) == 1
	}, time.Second, 5*time.Millisecond)
	stop()

	calls, _ := store.snapshot()
	assert.Equal(t, 3, calls)
	assert.Contains(t, scrape(t, m), `captionrate_votes_total{status="written",value="1"} 1`)
}

func TestWriter_DropsAfterMaxAttempts(t *testing.T) {
	store := &fakeStore{failures: 10}
	w, m := newWriter(t, store)
	stop := start(w)

	require.NoError(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: -1}))
	require.Eventually(t, func() bool {
		return strings.Contains(scrape(t, m), `captionrate_votes_total{status="dropped",value="-1"} 1`)
	}, time.Second, 5*time.Millisecond)
	stop()

	calls, written := store.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, written)
}

func TestWriter_LogsDropWhenCancelledDuringBackoff(t *testing.T) {
	store := &fakeStore{failures: 10}
	w, m := newWriter(t, store)
	w.Backoff = time.Hour
	var logs bytes.Buffer
	w.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.write(ctx, caption.Vote{CaptionID: "c7", ProfileID: "p1", Value: 1})
	}()

	require.Eventually(t, func() bool {
		calls, _ := store.snapshot()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	out := logs.String()
	assert.Contains(t, out, `msg="vote dropped"`)
	assert.Contains(t, out, "caption_id=c7")
	assert.Contains(t, out, "attempts=1")
	assert.Contains(t, scrape(t, m), `captionrate_votes_total{status="dropped",value="1"} 1`)
}

func TestWriter_FlushesQueueOnStop(t *testing.T) {
	store := &fakeStore{}
	w, _ := newWriter(t, store)

	// Queue before Run starts so the votes are still pending when ctx is cancelled.
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, w.Submit(context.Background(), caption.Vote{CaptionID: id, ProfileID: "p1", Value: 1}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	_, written := store.snapshot()
	assert.Len(t, written, 3)
}

func TestWriter_SubmitAfterStop(t *testing.T) {
	w, _ := newWriter(t, &fakeStore{})
	stop := start(w)
	stop()

	err := w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 1})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestWriter_SubmitHonoursContext(t *testing.T) {
	w, _ := newWriter(t, &fakeStore{})
	w.queue = make(chan caption.Vote) // nothing drains it

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := w.Submit(ctx, caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriter_WritesThroughCaptionService(t *testing.T) {
	gdb := testutil.NewDB(t, &caption.Caption{}, &caption.Vote{})
	svc := &caption.Service{DB: gdb, Logger: testutil.Logger()}
	w, _ := newWriter(t, svc)
	stop := start(w)

	require.NoError(t, w.Submit(context.Background(), caption.Vote{CaptionID: "c1", ProfileID: "p1", Value: 1}))
	require.Eventually(t, func() bool {
		var n int64
		gdb.Model(&caption.Vote{}).Count(&n)
		return n == 1
	}, time.Second, 5*time.Millisecond)
	stop()

	var v caption.Vote
	require.NoError(t, gdb.First(&v).Error)
	assert.Equal(t, "p1", v.ProfileID)
	assert.True(t, v.CreatedAt.Equal(fixedNow))
}
