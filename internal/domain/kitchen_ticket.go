package domain

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusReady      TicketStatus = "READY"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

var AllTicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusInProgress,
	TicketStatusReady,
	TicketStatusCompleted,
	TicketStatusCancelled,
}

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:    {TicketStatusInProgress, TicketStatusCancelled},
	TicketStatusInProgress: {TicketStatusReady, TicketStatusCancelled},
	TicketStatusReady:      {TicketStatusCompleted, TicketStatusCancelled},
}

func IsValidTicketTransition(from, to TicketStatus) bool {
	for _, next := range ticketTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// TimerRunning is true for statuses whose elapsed time still accrues.
func (s TicketStatus) TimerRunning() bool {
	return s == TicketStatusPending || s == TicketStatusInProgress
}

type TicketItemStatus string

const (
	TicketItemStatusPending   TicketItemStatus = "PENDING"
	TicketItemStatusPreparing TicketItemStatus = "PREPARING"
	TicketItemStatusReady     TicketItemStatus = "READY"
	TicketItemStatusCancelled TicketItemStatus = "CANCELLED"
	TicketItemStatusRecalled  TicketItemStatus = "RECALLED"
)

var AllTicketItemStatuses = []TicketItemStatus{
	TicketItemStatusPending,
	TicketItemStatusPreparing,
	TicketItemStatusReady,
	TicketItemStatusCancelled,
	TicketItemStatusRecalled,
}

var ticketItemTransitions = map[TicketItemStatus][]TicketItemStatus{
	TicketItemStatusPending:   {TicketItemStatusPreparing, TicketItemStatusCancelled},
	TicketItemStatusPreparing: {TicketItemStatusReady, TicketItemStatusCancelled, TicketItemStatusRecalled},
	TicketItemStatusReady:     {TicketItemStatusCancelled, TicketItemStatusRecalled},
	TicketItemStatusRecalled:  {TicketItemStatusPending, TicketItemStatusCancelled},
}

func IsValidTicketItemTransition(from, to TicketItemStatus) bool {
	for _, next := range ticketItemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TicketPriority string

const (
	PriorityNormal TicketPriority = "NORMAL"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
	PriorityFire   TicketPriority = "FIRE"
)

func ParseTicketPriority(s string) (TicketPriority, bool) {
	switch TicketPriority(s) {
	case PriorityNormal, PriorityHigh, PriorityUrgent, PriorityFire:
		return TicketPriority(s), true
	}
	return "", false
}

// Rush is true for priorities that override the timer color.
func (p TicketPriority) Rush() bool {
	return p == PriorityUrgent || p == PriorityFire
}

type TimerColor string

const (
	TimerGreen  TimerColor = "green"
	TimerYellow TimerColor = "yellow"
	TimerRed    TimerColor = "red"
)

type KitchenTicket struct {
	ID                 string
	TenantID           string
	OrderID            string
	TableID            string
	TicketNumber       string
	SourceMessageID    string
	Status             TicketStatus
	Priority           TicketPriority
	ElapsedSeconds     int
	LastTickAt         time.Time
	IsTimerPaused      bool
	TimerPausedAt      *time.Time
	TotalPausedSeconds int
	WarningThreshold   int
	CriticalThreshold  int
	TableName          *string
	FloorName          *string
	ChefID             *string
	Items              []KitchenTicketItem
	StartedAt          *time.Time
	ReadyAt            *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Color classifies the elapsed time against the ticket thresholds.
func (t *KitchenTicket) Color() TimerColor {
	if t.Priority.Rush() {
		return TimerRed
	}
	switch {
	case t.ElapsedSeconds >= t.CriticalThreshold:
		return TimerRed
	case t.ElapsedSeconds >= t.WarningThreshold:
		return TimerYellow
	default:
		return TimerGreen
	}
}

// Pause stops elapsed-time accrual. Pausing a paused ticket is a no-op.
func (t *KitchenTicket) Pause(now time.Time) bool {
	if t.IsTimerPaused {
		return false
	}
	t.IsTimerPaused = true
	t.TimerPausedAt = &now
	t.UpdatedAt = now
	return true
}

// Resume adds the pause duration to TotalPausedSeconds and restarts accrual from now.
func (t *KitchenTicket) Resume(now time.Time) bool {
	if !t.IsTimerPaused {
		return false
	}
	if t.TimerPausedAt != nil {
		paused := int(now.Sub(*t.TimerPausedAt).Seconds())
		if paused > 0 {
			t.TotalPausedSeconds += paused
		}
	}
	t.IsTimerPaused = false
	t.TimerPausedAt = nil
	t.LastTickAt = now
	t.UpdatedAt = now
	return true
}

// Advance credits whole seconds elapsed since LastTickAt. It returns the
// number of seconds credited; the fractional remainder carries to the next call.
func (t *KitchenTicket) Advance(now time.Time) int {
	if t.IsTimerPaused || !t.Status.TimerRunning() {
		return 0
	}
	if t.LastTickAt.IsZero() {
		t.LastTickAt = now
		return 0
	}
	delta := int(now.Sub(t.LastTickAt) / time.Second)
	if delta <= 0 {
		return 0
	}
	t.ElapsedSeconds += delta
	t.LastTickAt = t.LastTickAt.Add(time.Duration(delta) * time.Second)
	for i := range t.Items {
		if t.Items[i].Status == TicketItemStatusPreparing {
			t.Items[i].ElapsedSeconds += delta
		}
	}
	return delta
}

// ActiveItems returns the items that still count for readiness.
func (t *KitchenTicket) ActiveItems() []*KitchenTicketItem {
	var active []*KitchenTicketItem
	for i := range t.Items {
		if t.Items[i].Status != TicketItemStatusCancelled {
			active = append(active, &t.Items[i])
		}
	}
	return active
}

// AllActiveReady is true when there is at least one non-cancelled item and all are READY.
func (t *KitchenTicket) AllActiveReady() bool {
	active := t.ActiveItems()
	if len(active) == 0 {
		return false
	}
	for _, item := range active {
		if item.Status != TicketItemStatusReady {
			return false
		}
	}
	return true
}

func (t *KitchenTicket) ItemByID(id string) (*KitchenTicketItem, bool) {
	for i := range t.Items {
		if t.Items[i].ID == id {
			return &t.Items[i], true
		}
	}
	return nil, false
}

type KitchenTicketItem struct {
	ID             string
	TicketID       string
	OrderItemID    string
	MenuItemID     string
	Name           string
	Quantity       int
	Modifiers      []string
	Notes          string
	Station        string
	CourseNumber   int
	Status         TicketItemStatus
	ReportedStatus ItemStatus
	ElapsedSeconds int
	StartedAt      *time.Time
	ReadyAt        *time.Time
	RecallCount    int
	RecallReason   *string
	IsRush         bool
	IsAllergy      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NeedsReport is true when the Order aggregate has not yet been told the item
// reached target. A recalled item that is re-cooked is not reported twice.
func (i *KitchenTicketItem) NeedsReport(target ItemStatus) bool {
	return itemProgress(target) > itemProgress(i.ReportedStatus)
}

// Reached is true when s is at or past target on the cooking path. REJECTED
// and CANCELLED reach nothing.
func (s ItemStatus) Reached(target ItemStatus) bool {
	return itemProgress(s) > 0 && itemProgress(s) >= itemProgress(target)
}

func itemProgress(s ItemStatus) int {
	switch s {
	case ItemStatusAccepted:
		return 1
	case ItemStatusPreparing:
		return 2
	case ItemStatusReady:
		return 3
	case ItemStatusServed:
		return 4
	default:
		return 0
	}
}

// FormatTicketNumber renders a daily sequence value as a display label.
func FormatTicketNumber(seq int) string {
	return fmt.Sprintf("#%03d", seq)
}
