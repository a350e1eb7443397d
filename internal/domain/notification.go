package domain

import "time"

type NotificationStatus string

const (
	NotificationUnread   NotificationStatus = "UNREAD"
	NotificationRead     NotificationStatus = "READ"
	NotificationArchived NotificationStatus = "ARCHIVED"
)

func ParseNotificationStatus(s string) (NotificationStatus, bool) {
	switch NotificationStatus(s) {
	case NotificationUnread, NotificationRead, NotificationArchived:
		return NotificationStatus(s), true
	}
	return "", false
}

// NotificationMetadata is stored as JSON next to the notification.
type NotificationMetadata struct {
	MessageID string                 `json:"messageId"`
	Items     []NotificationItemInfo `json:"items"`
}

type NotificationItemInfo struct {
	ID         string   `json:"id"`
	MenuItemID string   `json:"menuItemId"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Total      float64  `json:"total"`
}

type OrderNotification struct {
	ID         string
	TenantID   string
	OrderID    string
	TableID    string
	Status     NotificationStatus
	ItemIDs    []string
	Message    string
	Metadata   NotificationMetadata
	ReadAt     *time.Time
	ArchivedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NotificationFilter struct {
	Status  *NotificationStatus
	TableID string
	Limit   int
}
