package events

import (
	"time"

	"comanda/internal/domain"
)

// ItemSnapshot is the order item as carried inside events.
type ItemSnapshot struct {
	ID           string                `json:"id"`
	MenuItemID   string                `json:"menuItemId"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Station      string                `json:"station,omitempty"`
	CourseNumber int                   `json:"courseNumber"`
	Quantity     int                   `json:"quantity"`
	UnitPrice    float64               `json:"unitPrice"`
	Modifiers    []domain.ItemModifier `json:"modifiers,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	Total        float64               `json:"total"`
	Status       domain.ItemStatus     `json:"status"`
}

func SnapshotItem(item domain.OrderItem) ItemSnapshot {
	return ItemSnapshot{
		ID:           item.ID,
		MenuItemID:   item.MenuItemID,
		Name:         item.Name,
		Description:  item.Description,
		Station:      item.Station,
		CourseNumber: item.CourseNumber,
		Quantity:     item.Quantity,
		UnitPrice:    item.UnitPrice,
		Modifiers:    item.Modifiers,
		Notes:        item.Notes,
		Total:        item.Total,
		Status:       item.Status,
	}
}

func SnapshotItems(items []domain.OrderItem) []ItemSnapshot {
	out := make([]ItemSnapshot, 0, len(items))
	for _, item := range items {
		out = append(out, SnapshotItem(item))
	}
	return out
}

// NewItemsEvent carries only the items created by one checkout.
type NewItemsEvent struct {
	OrderID   string         `json:"orderId"`
	TenantID  string         `json:"tenantId"`
	TableID   string         `json:"tableId"`
	WaiterID  *string        `json:"waiterId,omitempty"`
	Appended  bool           `json:"appended"`
	Items     []ItemSnapshot `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
}

type ItemsAcceptedEvent struct {
	OrderID    string         `json:"orderId"`
	TenantID   string         `json:"tenantId"`
	TableID    string         `json:"tableId"`
	WaiterID   *string        `json:"waiterId,omitempty"`
	Items      []ItemSnapshot `json:"items"`
	AcceptedAt time.Time      `json:"acceptedAt"`
}

type ItemsStatusChangedEvent struct {
	OrderID   string            `json:"orderId"`
	TenantID  string            `json:"tenantId"`
	TableID   string            `json:"tableId"`
	ItemIDs   []string          `json:"itemIds"`
	Status    domain.ItemStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	ChangedAt time.Time         `json:"changedAt"`
}

type OrderStatusChangedEvent struct {
	OrderID       string               `json:"orderId"`
	TenantID      string               `json:"tenantId"`
	TableID       string               `json:"tableId"`
	From          domain.OrderStatus   `json:"from"`
	To            domain.OrderStatus   `json:"to"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	Total         float64              `json:"total"`
	ChangedAt     time.Time            `json:"changedAt"`
}

// PaymentCompletedEvent is published by the external payment collaborator.
type PaymentCompletedEvent struct {
	OrderID   string  `json:"orderId"`
	TenantID  string  `json:"tenantId"`
	PaymentID string  `json:"paymentId,omitempty"`
	Amount    float64 `json:"amount"`
}
