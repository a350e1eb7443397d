package dto

import (
	"time"

	"comanda/internal/domain"
)

type NotificationResponse struct {
	ID         string                      `json:"id"`
	OrderID    string                      `json:"orderId"`
	TableID    string                      `json:"tableId"`
	Status     string                      `json:"status"`
	ItemIDs    []string                    `json:"itemIds"`
	Message    string                      `json:"message"`
	Metadata   domain.NotificationMetadata `json:"metadata"`
	ReadAt     *time.Time                  `json:"readAt,omitempty"`
	ArchivedAt *time.Time                  `json:"archivedAt,omitempty"`
	CreatedAt  time.Time                   `json:"createdAt"`
}

func NewNotificationResponse(n *domain.OrderNotification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		OrderID:    n.OrderID,
		TableID:    n.TableID,
		Status:     string(n.Status),
		ItemIDs:    n.ItemIDs,
		Message:    n.Message,
		Metadata:   n.Metadata,
		ReadAt:     n.ReadAt,
		ArchivedAt: n.ArchivedAt,
		CreatedAt:  n.CreatedAt,
	}
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}
