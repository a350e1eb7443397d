package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/infrastructure/metrics"
)

// fakeTimerStore applies Tick with the same lastTickAt condition as the
// MySQL repository.
type fakeTimerStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.KitchenTicket
	tickErr error
}

func newFakeTimerStore(tickets ...*domain.KitchenTicket) *fakeTimerStore {
	s := &fakeTimerStore{tickets: make(map[string]*domain.KitchenTicket)}
	for _, t := range tickets {
		s.tickets[t.ID] = t
	}
	return s
}

func (s *fakeTimerStore) ListRunning(ctx context.Context) ([]domain.KitchenTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.KitchenTicket
	for _, t := range s.tickets {
		if t.Status.TimerRunning() && !t.IsTimerPaused {
			out = append(out, *cloneTicket(t))
		}
	}
	return out, nil
}

func (s *fakeTimerStore) Tick(ctx context.Context, t *domain.KitchenTicket, prev time.Time, seconds int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickErr != nil {
		return false, s.tickErr
	}
	stored := s.tickets[t.ID]
	if !stored.LastTickAt.Equal(prev) {
		return false, nil
	}
	stored.ElapsedSeconds += seconds
	stored.LastTickAt = t.LastTickAt
	return true, nil
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	batches map[string][]TimerBatch
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, tenantID string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.batches == nil {
		b.batches = make(map[string][]TimerBatch)
	}
	b.batches[tenantID] = append(b.batches[tenantID], payload.(TimerBatch))
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, batches := range b.batches {
		n += len(batches)
	}
	return n
}

func runningTicket(id, tenantID string, start time.Time) *domain.KitchenTicket {
	return &domain.KitchenTicket{
		ID:                id,
		TenantID:          tenantID,
		Status:            domain.TicketStatusInProgress,
		Priority:          domain.PriorityNormal,
		LastTickAt:        start,
		WarningThreshold:  600,
		CriticalThreshold: 900,
	}
}

func newTestTimer(store TimerRepository, b Broadcaster, now *time.Time) *Timer {
	return NewTimer(store, b, time.Second, 5*time.Second, metrics.New(), zap.NewNop()).
		WithClock(func() time.Time { return *now })
}

func TestTimer_AdvancesByWallClockDelta(t *testing.T) {
	now := kitchenStart
	store := newFakeTimerStore(runningTicket("k1", "t1", kitchenStart))
	timer := newTestTimer(store, nil, &now)

	now = kitchenStart.Add(3 * time.Second)
	timer.TickOnce(context.Background())
	assert.Equal(t, 3, store.tickets["k1"].ElapsedSeconds)

	// Same instant again credits nothing.
	timer.TickOnce(context.Background())
	assert.Equal(t, 3, store.tickets["k1"].ElapsedSeconds)
}

func TestTimer_TwoInstancesDoNotDoubleCount(t *testing.T) {
	now := kitchenStart
	store := newFakeTimerStore(runningTicket("k1", "t1", kitchenStart))
	a := newTestTimer(store, nil, &now)
	b := newTestTimer(store, nil, &now)

	for i := 1; i <= 10; i++ {
		now = kitchenStart.Add(time.Duration(i) * time.Second)
		a.TickOnce(context.Background())
		b.TickOnce(context.Background())
	}

	assert.Equal(t, 10, store.tickets["k1"].ElapsedSeconds)
}

func TestTimer_PausedTicketDoesNotAccrue(t *testing.T) {
	now := kitchenStart
	paused := runningTicket("k1", "t1", kitchenStart)
	paused.Pause(kitchenStart)
	store := newFakeTimerStore(paused)
	timer := newTestTimer(store, nil, &now)

	now = kitchenStart.Add(30 * time.Second)
	timer.TickOnce(context.Background())

	assert.Equal(t, 0, store.tickets["k1"].ElapsedSeconds)
}

func TestTimer_PersistErrorSelfCorrects(t *testing.T) {
	now := kitchenStart
	store := newFakeTimerStore(runningTicket("k1", "t1", kitchenStart))
	store.tickErr = errors.New("deadlock")
	timer := newTestTimer(store, nil, &now)

	now = kitchenStart.Add(2 * time.Second)
	timer.TickOnce(context.Background())
	assert.Equal(t, 0, store.tickets["k1"].ElapsedSeconds)

	store.tickErr = nil
	now = kitchenStart.Add(5 * time.Second)
	timer.TickOnce(context.Background())
	assert.Equal(t, 5, store.tickets["k1"].ElapsedSeconds)
}

func TestTimer_BroadcastThrottledAndGroupedByTenant(t *testing.T) {
	now := kitchenStart
	store := newFakeTimerStore(
		runningTicket("k1", "t1", kitchenStart),
		runningTicket("k2", "t1", kitchenStart),
		runningTicket("k3", "t2", kitchenStart),
	)
	b := &recordingBroadcaster{}
	timer := newTestTimer(store, b, &now)

	for i := 1; i <= 10; i++ {
		now = kitchenStart.Add(time.Duration(i) * time.Second)
		timer.TickOnce(context.Background())
	}

	// One burst at the first tick and one five seconds later, per tenant.
	assert.Equal(t, 4, b.count())
	require.Len(t, b.batches["t1"], 2)
	assert.Len(t, b.batches["t1"][0].Tickets, 2)
	assert.Len(t, b.batches["t2"][0].Tickets, 1)
	assert.Equal(t, 6, b.batches["t1"][1].Tickets[0].ElapsedSeconds)
}

func TestTimer_ColorOnBroadcast(t *testing.T) {
	now := kitchenStart
	late := runningTicket("k1", "t1", kitchenStart)
	late.ElapsedSeconds = 899
	fired := runningTicket("k2", "t2", kitchenStart)
	fired.Priority = domain.PriorityFire
	store := newFakeTimerStore(late, fired)
	b := &recordingBroadcaster{}
	timer := newTestTimer(store, b, &now)

	now = kitchenStart.Add(time.Second)
	timer.TickOnce(context.Background())

	require.Len(t, b.batches["t1"], 1)
	assert.Equal(t, domain.TimerRed, b.batches["t1"][0].Tickets[0].Color)
	assert.Equal(t, domain.TimerRed, b.batches["t2"][0].Tickets[0].Color)
}

func TestTimer_RunStopsOnCancel(t *testing.T) {
	store := newFakeTimerStore()
	timer := NewTimer(store, nil, 10*time.Millisecond, time.Second, metrics.New(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- timer.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}
}
