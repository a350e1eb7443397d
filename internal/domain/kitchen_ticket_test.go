package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningTicket(start time.Time) *KitchenTicket {
	return &KitchenTicket{
		Status:            TicketStatusInProgress,
		Priority:          PriorityNormal,
		LastTickAt:        start,
		WarningThreshold:  600,
		CriticalThreshold: 900,
		Items: []KitchenTicketItem{
			{ID: "i1", Status: TicketItemStatusPreparing},
			{ID: "i2", Status: TicketItemStatusPending},
		},
	}
}

func TestKitchenTicket_Advance_WholeSecondsOnly(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticket := newRunningTicket(start)

	assert.Equal(t, 0, ticket.Advance(start.Add(900*time.Millisecond)))
	assert.Equal(t, 1, ticket.Advance(start.Add(1500*time.Millisecond)))
	assert.Equal(t, 1, ticket.ElapsedSeconds)
	assert.Equal(t, start.Add(time.Second), ticket.LastTickAt)

	assert.Equal(t, 2, ticket.Advance(start.Add(3*time.Second)))
	assert.Equal(t, 3, ticket.ElapsedSeconds)
	assert.Equal(t, 3, ticket.Items[0].ElapsedSeconds)
	assert.Equal(t, 0, ticket.Items[1].ElapsedSeconds)
}

func TestKitchenTicket_Advance_RepeatedTickIsIdempotent(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticket := newRunningTicket(start)
	now := start.Add(5 * time.Second)

	ticket.Advance(now)
	ticket.Advance(now)

	assert.Equal(t, 5, ticket.ElapsedSeconds)
}

func TestKitchenTicket_PausedDoesNotAccrue(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticket := newRunningTicket(start)

	require.True(t, ticket.Pause(start))
	assert.False(t, ticket.Pause(start), "second pause is a no-op")

	for i := 1; i <= 10; i++ {
		ticket.Advance(start.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 0, ticket.ElapsedSeconds)

	resumeAt := start.Add(30 * time.Second)
	require.True(t, ticket.Resume(resumeAt))
	assert.GreaterOrEqual(t, ticket.TotalPausedSeconds, 30)
	assert.False(t, ticket.IsTimerPaused)
	assert.Nil(t, ticket.TimerPausedAt)

	ticket.Advance(resumeAt.Add(4 * time.Second))
	assert.Equal(t, 4, ticket.ElapsedSeconds)
}

func TestKitchenTicket_Advance_StopsWhenReady(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticket := newRunningTicket(start)
	ticket.Status = TicketStatusReady

	assert.Equal(t, 0, ticket.Advance(start.Add(10*time.Second)))
}

func TestKitchenTicket_Color(t *testing.T) {
	ticket := &KitchenTicket{Priority: PriorityNormal, WarningThreshold: 600, CriticalThreshold: 900}

	ticket.ElapsedSeconds = 10
	assert.Equal(t, TimerGreen, ticket.Color())

	ticket.ElapsedSeconds = 600
	assert.Equal(t, TimerYellow, ticket.Color())

	ticket.ElapsedSeconds = 901
	assert.Equal(t, TimerRed, ticket.Color())

	ticket.ElapsedSeconds = 10
	ticket.Priority = PriorityFire
	assert.Equal(t, TimerRed, ticket.Color())

	ticket.Priority = PriorityUrgent
	assert.Equal(t, TimerRed, ticket.Color())

	ticket.Priority = PriorityHigh
	assert.Equal(t, TimerGreen, ticket.Color())
}

func TestKitchenTicket_AllActiveReady(t *testing.T) {
	ticket := &KitchenTicket{Items: []KitchenTicketItem{
		{ID: "a", Status: TicketItemStatusReady},
		{ID: "b", Status: TicketItemStatusCancelled},
	}}
	assert.True(t, ticket.AllActiveReady())

	ticket.Items[1].Status = TicketItemStatusPreparing
	assert.False(t, ticket.AllActiveReady())

	ticket.Items = []KitchenTicketItem{{ID: "a", Status: TicketItemStatusCancelled}}
	assert.False(t, ticket.AllActiveReady())
}

func TestKitchenTicketItem_NeedsReport(t *testing.T) {
	item := KitchenTicketItem{ReportedStatus: ItemStatusAccepted}
	assert.True(t, item.NeedsReport(ItemStatusPreparing))

	item.ReportedStatus = ItemStatusReady
	assert.False(t, item.NeedsReport(ItemStatusPreparing))
	assert.False(t, item.NeedsReport(ItemStatusReady))
}

func TestItemStatus_Reached(t *testing.T) {
	assert.True(t, ItemStatusPreparing.Reached(ItemStatusPreparing))
	assert.True(t, ItemStatusServed.Reached(ItemStatusReady))
	assert.False(t, ItemStatusAccepted.Reached(ItemStatusPreparing))
	assert.False(t, ItemStatusRejected.Reached(ItemStatusPreparing))
	assert.False(t, ItemStatusCancelled.Reached(ItemStatusReady))
}

func TestFormatTicketNumber(t *testing.T) {
	assert.Equal(t, "#001", FormatTicketNumber(1))
	assert.Equal(t, "#042", FormatTicketNumber(42))
	assert.Equal(t, "#1234", FormatTicketNumber(1234))
}
