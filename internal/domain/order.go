package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// NotesSeparator joins notes of consecutive checkouts on the same order session.
const NotesSeparator = " | "

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

type Order struct {
	ID            string
	TenantID      string
	TableID       string
	CustomerID    *string
	CustomerName  *string
	WaiterID      *string
	Notes         string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Subtotal      float64
	TaxRate       float64
	Tax           float64
	Discount      float64
	Total         float64
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// CanCancel is true only while the order is still open.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusInProgress
}

// AppendNotes concatenates notes from a later checkout onto the session.
func (o *Order) AppendNotes(notes string) {
	if notes == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = notes
		return
	}
	o.Notes = o.Notes + NotesSeparator + notes
}

// RecomputeTotals sums billable items, applies the tax rate and subtracts the
// discount after tax.
func (o *Order) RecomputeTotals() {
	subtotal := 0.0
	for _, item := range o.Items {
		if item.Status.Billable() {
			subtotal += item.Total
		}
	}
	o.Subtotal = RoundMoney(subtotal)
	o.Tax = RoundMoney(o.Subtotal * o.TaxRate)
	total := RoundMoney(o.Subtotal + o.Tax - o.Discount)
	if total < 0 {
		total = 0
	}
	o.Total = total
}

// PromoteIfStarted moves a PENDING order to IN_PROGRESS once any item is in the kitchen.
func (o *Order) PromoteIfStarted(now time.Time) bool {
	if o.Status != OrderStatusPending {
		return false
	}
	for _, item := range o.Items {
		if item.Status.InKitchen() {
			o.Status = OrderStatusInProgress
			o.UpdatedAt = now
			return true
		}
	}
	return false
}

// PaymentReady is true when every item has left the kitchen flow and at least
// one was served. Rejected and cancelled items are ignored.
func (o *Order) PaymentReady() bool {
	served := 0
	for _, item := range o.Items {
		switch item.Status {
		case ItemStatusServed:
			served++
		case ItemStatusRejected, ItemStatusCancelled:
		default:
			return false
		}
	}
	return served > 0
}

// Cancel moves the order to CANCELLED and cascades to every non-terminal item.
// It returns the ids of the items it cancelled.
func (o *Order) Cancel(now time.Time) []string {
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now

	var cancelled []string
	for i := range o.Items {
		if o.Items[i].Status.IsTerminal() {
			continue
		}
		o.Items[i].ApplyStatus(ItemStatusCancelled, "", now)
		cancelled = append(cancelled, o.Items[i].ID)
	}
	o.RecomputeTotals()
	return cancelled
}

func (o *Order) ItemByID(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// OrderFilter narrows order listings. A zero Limit means the default page size.
type OrderFilter struct {
	Status  *OrderStatus
	TableID string
	Limit   int
}
