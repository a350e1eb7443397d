package domain

import "time"

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusAccepted  ItemStatus = "ACCEPTED"
	ItemStatusPreparing ItemStatus = "PREPARING"
	ItemStatusReady     ItemStatus = "READY"
	ItemStatusServed    ItemStatus = "SERVED"
	ItemStatusRejected  ItemStatus = "REJECTED"
	ItemStatusCancelled ItemStatus = "CANCELLED"
)

var AllItemStatuses = []ItemStatus{
	ItemStatusPending,
	ItemStatusAccepted,
	ItemStatusPreparing,
	ItemStatusReady,
	ItemStatusServed,
	ItemStatusRejected,
	ItemStatusCancelled,
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:   {ItemStatusAccepted, ItemStatusRejected},
	ItemStatusAccepted:  {ItemStatusPreparing, ItemStatusRejected},
	ItemStatusPreparing: {ItemStatusReady},
	ItemStatusReady:     {ItemStatusServed},
}

// IsValidItemTransition reports whether an order item may move from one status to another.
// Order cancellation is the only path into CANCELLED and does not go through this table.
func IsValidItemTransition(from, to ItemStatus) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ParseItemStatus(s string) (ItemStatus, bool) {
	for _, st := range AllItemStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusServed || s == ItemStatusRejected || s == ItemStatusCancelled
}

// InKitchen is true for statuses that mean the kitchen has taken the item.
func (s ItemStatus) InKitchen() bool {
	return s == ItemStatusAccepted || s == ItemStatusPreparing || s == ItemStatusReady
}

// Billable is false for items that are never charged.
func (s ItemStatus) Billable() bool {
	return s != ItemStatusRejected && s != ItemStatusCancelled
}

type ItemModifier struct {
	GroupID  string  `json:"groupId"`
	OptionID string  `json:"optionId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
}

type OrderItem struct {
	ID              string
	OrderID         string
	MenuItemID      string
	Name            string
	Description     string
	Station         string
	CourseNumber    int
	Notes           string
	UnitPrice       float64
	Quantity        int
	Modifiers       []ItemModifier
	Subtotal        float64
	ModifiersTotal  float64
	Total           float64
	Status          ItemStatus
	RejectionReason *string
	AcceptedAt      *time.Time
	PreparingAt     *time.Time
	ReadyAt         *time.Time
	ServedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ComputeTotals fills Subtotal, ModifiersTotal and Total from unit and modifier prices.
func (i *OrderItem) ComputeTotals() {
	perUnitModifiers := 0.0
	for _, m := range i.Modifiers {
		perUnitModifiers += m.Price
	}
	qty := float64(i.Quantity)
	i.Subtotal = RoundMoney(i.UnitPrice * qty)
	i.ModifiersTotal = RoundMoney(perUnitModifiers * qty)
	i.Total = RoundMoney(i.Subtotal + i.ModifiersTotal)
}

// ApplyStatus moves the item to a new status and stamps the matching timestamp.
// It does not validate; callers check IsValidItemTransition first.
func (i *OrderItem) ApplyStatus(to ItemStatus, reason string, now time.Time) {
	i.Status = to
	i.UpdatedAt = now
	switch to {
	case ItemStatusAccepted:
		i.AcceptedAt = &now
	case ItemStatusPreparing:
		i.PreparingAt = &now
	case ItemStatusReady:
		i.ReadyAt = &now
	case ItemStatusServed:
		i.ServedAt = &now
	case ItemStatusRejected:
		r := reason
		i.RejectionReason = &r
	}
}

// ItemStatusChange is a batch transition request against one order.
type ItemStatusChange struct {
	ItemIDs []string   `json:"itemIds"`
	Status  ItemStatus `json:"status"`
	Reason  string     `json:"reason,omitempty"`
	ActorID string     `json:"actorId,omitempty"`
}
