package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"comanda/internal/domain"
	"comanda/internal/infrastructure/metrics"
)

type TimerRepository interface {
	ListRunning(ctx context.Context) ([]domain.KitchenTicket, error)
	Tick(ctx context.Context, t *domain.KitchenTicket, prev time.Time, seconds int) (bool, error)
}

// Broadcaster fans timer state out to kitchen displays of one tenant.
type Broadcaster interface {
	Broadcast(ctx context.Context, tenantID string, payload interface{}) error
}

// TimerState is one ticket on the timer broadcast.
type TimerState struct {
	TicketID       string                `json:"ticketId"`
	TicketNumber   string                `json:"ticketNumber"`
	OrderID        string                `json:"orderId"`
	TableID        string                `json:"tableId"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	ElapsedSeconds int                   `json:"elapsedSeconds"`
	Color          domain.TimerColor     `json:"color"`
}

// TimerBatch is the broadcast body for one tenant.
type TimerBatch struct {
	TenantID string       `json:"tenantId"`
	Tickets  []TimerState `json:"tickets"`
	SentAt   time.Time    `json:"sentAt"`
}

// Timer advances elapsed time on running tickets. Several instances may run
// at once: each credit is conditional on the lastTickAt it was computed from.
type Timer struct {
	repo        TimerRepository
	broadcaster Broadcaster
	limiter     *rate.Limiter
	interval    time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewTimer(repo TimerRepository, broadcaster Broadcaster, interval, broadcastEvery time.Duration, m *metrics.Metrics, logger *zap.Logger) *Timer {
	return &Timer{
		repo:        repo,
		broadcaster: broadcaster,
		limiter:     rate.NewLimiter(rate.Every(broadcastEvery), 1),
		interval:    interval,
		metrics:     m,
		logger:      logger,
		now:         clock,
	}
}

// WithClock replaces the time source. Used by tests.
func (t *Timer) WithClock(now func() time.Time) *Timer {
	t.now = now
	return t
}

// Run ticks until ctx is done.
func (t *Timer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("Kitchen timer started", zap.Duration("interval", t.interval))
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Kitchen timer stopped")
			return nil
		case <-ticker.C:
			t.TickOnce(ctx)
		}
	}
}

// TickOnce runs one iteration. Failures are logged; the next tick picks up
// the remaining delta.
func (t *Timer) TickOnce(ctx context.Context) {
	now := t.now()
	tickets, err := t.repo.ListRunning(ctx)
	if err != nil {
		t.logger.Error("Failed to load running tickets", zap.Error(err))
		t.metrics.TimerTicks.WithLabelValues("error").Inc()
		return
	}

	result := "ok"
	byTenant := make(map[string][]TimerState)
	for i := range tickets {
		ticket := &tickets[i]
		prev := ticket.LastTickAt
		seconds := ticket.Advance(now)
		if seconds > 0 {
			ok, err := t.repo.Tick(ctx, ticket, prev, seconds)
			if err != nil {
				t.logger.Warn("Failed to persist ticket timer",
					zap.String("ticketId", ticket.ID),
					zap.Error(err),
				)
				result = "error"
				continue
			}
			if !ok {
				// Another instance already credited this interval.
				continue
			}
		}
		byTenant[ticket.TenantID] = append(byTenant[ticket.TenantID], stateOf(ticket))
	}

	t.metrics.TimerTicks.WithLabelValues(result).Inc()
	t.metrics.ActiveTickets.Set(float64(len(tickets)))

	if t.broadcaster == nil || len(byTenant) == 0 || !t.limiter.AllowN(now, 1) {
		return
	}
	for tenantID, states := range byTenant {
		batch := TimerBatch{TenantID: tenantID, Tickets: states, SentAt: now}
		if err := t.broadcaster.Broadcast(ctx, tenantID, batch); err != nil {
			t.logger.Warn("Timer broadcast failed",
				zap.String("tenantId", tenantID),
				zap.Error(err),
			)
		}
	}
}

func stateOf(t *domain.KitchenTicket) TimerState {
	return TimerState{
		TicketID:       t.ID,
		TicketNumber:   t.TicketNumber,
		OrderID:        t.OrderID,
		TableID:        t.TableID,
		Status:         t.Status,
		Priority:       t.Priority,
		ElapsedSeconds: t.ElapsedSeconds,
		Color:          t.Color(),
	}
}
