package dto

import (
	"time"

	"comanda/internal/domain"
)

type TicketItemsRequest struct {
	ItemIDs []string `json:"itemIds"`
}

type RecallItemRequest struct {
	Reason string `json:"reason"`
}

type SetPriorityRequest struct {
	Priority string `json:"priority"`
}

type TicketItemResponse struct {
	ID             string     `json:"id"`
	OrderItemID    string     `json:"orderItemId"`
	MenuItemID     string     `json:"menuItemId"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	Modifiers      []string   `json:"modifiers"`
	Notes          string     `json:"notes,omitempty"`
	Station        string     `json:"station,omitempty"`
	CourseNumber   int        `json:"courseNumber"`
	Status         string     `json:"status"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	ReadyAt        *time.Time `json:"readyAt,omitempty"`
	RecallCount    int        `json:"recallCount"`
	RecallReason   *string    `json:"recallReason,omitempty"`
	IsRush         bool       `json:"isRush"`
	IsAllergy      bool       `json:"isAllergy"`
}

type TicketResponse struct {
	ID                 string               `json:"id"`
	OrderID            string               `json:"orderId"`
	TableID            string               `json:"tableId"`
	TableName          *string              `json:"tableName,omitempty"`
	FloorName          *string              `json:"floorName,omitempty"`
	TicketNumber       string               `json:"ticketNumber"`
	Status             string               `json:"status"`
	Priority           string               `json:"priority"`
	ElapsedSeconds     int                  `json:"elapsedSeconds"`
	TimerColor         string               `json:"timerColor"`
	IsTimerPaused      bool                 `json:"isTimerPaused"`
	TotalPausedSeconds int                  `json:"totalPausedSeconds"`
	ChefID             *string              `json:"chefId,omitempty"`
	Items              []TicketItemResponse `json:"items"`
	StartedAt          *time.Time           `json:"startedAt,omitempty"`
	ReadyAt            *time.Time           `json:"readyAt,omitempty"`
	CompletedAt        *time.Time           `json:"completedAt,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
}

func NewTicketResponse(t *domain.KitchenTicket) TicketResponse {
	items := make([]TicketItemResponse, len(t.Items))
	for i, it := range t.Items {
		modifiers := it.Modifiers
		if modifiers == nil {
			modifiers = []string{}
		}
		items[i] = TicketItemResponse{
			ID:             it.ID,
			OrderItemID:    it.OrderItemID,
			MenuItemID:     it.MenuItemID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			Modifiers:      modifiers,
			Notes:          it.Notes,
			Station:        it.Station,
			CourseNumber:   it.CourseNumber,
			Status:         string(it.Status),
			ElapsedSeconds: it.ElapsedSeconds,
			StartedAt:      it.StartedAt,
			ReadyAt:        it.ReadyAt,
			RecallCount:    it.RecallCount,
			RecallReason:   it.RecallReason,
			IsRush:         it.IsRush,
			IsAllergy:      it.IsAllergy,
		}
	}

	return TicketResponse{
		ID:                 t.ID,
		OrderID:            t.OrderID,
		TableID:            t.TableID,
		TableName:          t.TableName,
		FloorName:          t.FloorName,
		TicketNumber:       t.TicketNumber,
		Status:             string(t.Status),
		Priority:           string(t.Priority),
		ElapsedSeconds:     t.ElapsedSeconds,
		TimerColor:         string(t.Color()),
		IsTimerPaused:      t.IsTimerPaused,
		TotalPausedSeconds: t.TotalPausedSeconds,
		ChefID:             t.ChefID,
		Items:              items,
		StartedAt:          t.StartedAt,
		ReadyAt:            t.ReadyAt,
		CompletedAt:        t.CompletedAt,
		CreatedAt:          t.CreatedAt,
	}
}
