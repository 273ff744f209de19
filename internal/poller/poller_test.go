package poller

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevcor13/client-interface1/internal/models"
	"github.com/kevcor13/client-interface1/internal/slotstore"
)

type fakeStore struct {
	mu          sync.Mutex
	slots       []models.Slot
	err         error
	prefiltered bool
	listCalls   int
}

func (f *fakeStore) List(ctx context.Context) ([]models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Slot(nil), f.slots...), nil
}

func (f *fakeStore) Patch(ctx context.Context, id string, p slotstore.Patch) error { return nil }

func (f *fakeStore) Prefiltered() bool { return f.prefiltered }

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []models.Snapshot
	errs  []error
	flags []bool
}

func (r *recordingSink) ApplySnapshot(snap models.Snapshot, showLoading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	r.flags = append(r.flags, showLoading)
}

func (r *recordingSink) ApplyFetchError(err error, showLoading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.flags = append(r.flags, showLoading)
}

func (r *recordingSink) lastSnapshot() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func testLogger() zerolog.Logger { return zerolog.New(io.Discard) }

func TestRefreshSortsAndFilters(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "3", Date: "2024-05-02", Time: "09:00", Status: models.SlotAvailable},
		{ID: "1", Date: "2024-05-01", Time: "14:00", Status: models.SlotAvailable},
		{ID: "2", Date: "2024-05-01", Time: "09:00", Status: models.SlotBooked},
		{ID: "4", Date: "2024-05-01", Time: "08:00", Status: models.SlotAvailable},
	}}
	sink := &recordingSink{}
	p := New(store, sink, time.Hour, testLogger())

	p.Refresh(context.Background(), true)

	snap := sink.lastSnapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "4", snap[0].ID)
	assert.Equal(t, "1", snap[1].ID)
	assert.Equal(t, "3", snap[2].ID)
	for _, s := range snap {
		assert.Equal(t, models.SlotAvailable, s.Status)
	}
}

func TestRefreshPrefilteredStoreSkipsFiltering(t *testing.T) {
	// A pre-filtered store only hands back bookable rows; their status
	// column may be absent entirely.
	store := &fakeStore{
		prefiltered: true,
		slots: []models.Slot{
			{ID: "1", Date: "2024-05-01", Time: "09:00"},
			{ID: "2", Date: "2024-05-01", Time: "10:00"},
		},
	}
	sink := &recordingSink{}
	p := New(store, sink, time.Hour, testLogger())

	p.Refresh(context.Background(), true)
	assert.Len(t, sink.lastSnapshot(), 2)
}

func TestRefreshErrorRoutedToSink(t *testing.T) {
	store := &fakeStore{err: errors.New("boom")}
	sink := &recordingSink{}
	p := New(store, sink, time.Hour, testLogger())

	p.Refresh(context.Background(), true)

	require.Len(t, sink.errs, 1)
	assert.Empty(t, sink.snaps)
	assert.True(t, sink.flags[0])
}

func TestRunTicksUntilStopped(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "1", Date: "2024-05-01", Time: "09:00", Status: models.SlotAvailable},
	}}
	sink := &recordingSink{}
	p := New(store, sink, 10*time.Millisecond, testLogger())

	go p.Run(context.Background())

	assert.Eventually(t, func() bool { return store.calls() >= 3 },
		2*time.Second, 5*time.Millisecond)

	p.Stop()
	time.Sleep(30 * time.Millisecond)
	after := store.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, store.calls(), "no polls after stop")
}

func TestStopIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	p := New(store, &recordingSink{}, time.Hour, testLogger())

	p.Stop()
	p.Stop()
	assert.True(t, p.Stopped())

	// A refresh after stop never reaches the store.
	p.Refresh(context.Background(), true)
	assert.Zero(t, store.calls())
}

func TestRunStoppedByContext(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	p := New(store, &recordingSink{}, 10*time.Millisecond, testLogger())
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not exit on context cancellation")
	}
}
