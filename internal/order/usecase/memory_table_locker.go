package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "comanda/internal/errors"
)

// MemoryTableLocker serializes checkouts per table inside one process. It is
// only correct when a single Order service instance is running.
type MemoryTableLocker struct {
	mu      sync.Mutex
	slots   map[string]*tableSlot
	timeout time.Duration
}

type tableSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryTableLocker(timeout time.Duration) *MemoryTableLocker {
	return &MemoryTableLocker{
		slots:   make(map[string]*tableSlot),
		timeout: timeout,
	}
}

func (l *MemoryTableLocker) Lock(ctx context.Context, tenantID, tableID string) (func(), error) {
	key := tenantID + "/" + tableID

	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &tableSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, apperrors.NewConflictError(fmt.Sprintf("table %s is busy, try again", tableID))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(key, slot)
		})
	}, nil
}

func (l *MemoryTableLocker) unref(key string, slot *tableSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
