package dto

import (
	"time"

	"comanda/internal/domain"
)

type CheckoutRequest struct {
	CustomerID   *string `json:"customerId,omitempty"`
	CustomerName *string `json:"customerName,omitempty"`
	WaiterID     *string `json:"waiterId,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

type UpdateItemsStatusRequest struct {
	ItemIDs []string `json:"itemIds"`
	Status  string   `json:"status"`
	Reason  string   `json:"reason,omitempty"`
}

type ApplyDiscountRequest struct {
	Discount float64 `json:"discount"`
}

type OrderItemResponse struct {
	ID              string                `json:"id"`
	MenuItemID      string                `json:"menuItemId"`
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	Station         string                `json:"station,omitempty"`
	CourseNumber    int                   `json:"courseNumber"`
	Notes           string                `json:"notes,omitempty"`
	UnitPrice       float64               `json:"unitPrice"`
	Quantity        int                   `json:"quantity"`
	Modifiers       []domain.ItemModifier `json:"modifiers"`
	Subtotal        float64               `json:"subtotal"`
	ModifiersTotal  float64               `json:"modifiersTotal"`
	Total           float64               `json:"total"`
	Status          string                `json:"status"`
	RejectionReason *string               `json:"rejectionReason,omitempty"`
	AcceptedAt      *time.Time            `json:"acceptedAt,omitempty"`
	PreparingAt     *time.Time            `json:"preparingAt,omitempty"`
	ReadyAt         *time.Time            `json:"readyAt,omitempty"`
	ServedAt        *time.Time            `json:"servedAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	TenantID      string              `json:"tenantId"`
	TableID       string              `json:"tableId"`
	CustomerID    *string             `json:"customerId,omitempty"`
	CustomerName  *string             `json:"customerName,omitempty"`
	WaiterID      *string             `json:"waiterId,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"paymentStatus"`
	PaymentReady  bool                `json:"paymentReady"`
	Subtotal      float64             `json:"subtotal"`
	TaxRate       float64             `json:"taxRate"`
	Tax           float64             `json:"tax"`
	Discount      float64             `json:"discount"`
	Total         float64             `json:"total"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
	CancelledAt   *time.Time          `json:"cancelledAt,omitempty"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		modifiers := it.Modifiers
		if modifiers == nil {
			modifiers = []domain.ItemModifier{}
		}
		items[i] = OrderItemResponse{
			ID:              it.ID,
			MenuItemID:      it.MenuItemID,
			Name:            it.Name,
			Description:     it.Description,
			Station:         it.Station,
			CourseNumber:    it.CourseNumber,
			Notes:           it.Notes,
			UnitPrice:       it.UnitPrice,
			Quantity:        it.Quantity,
			Modifiers:       modifiers,
			Subtotal:        it.Subtotal,
			ModifiersTotal:  it.ModifiersTotal,
			Total:           it.Total,
			Status:          string(it.Status),
			RejectionReason: it.RejectionReason,
			AcceptedAt:      it.AcceptedAt,
			PreparingAt:     it.PreparingAt,
			ReadyAt:         it.ReadyAt,
			ServedAt:        it.ServedAt,
			CreatedAt:       it.CreatedAt,
		}
	}

	return OrderResponse{
		ID:            o.ID,
		TenantID:      o.TenantID,
		TableID:       o.TableID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		WaiterID:      o.WaiterID,
		Notes:         o.Notes,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentReady:  o.PaymentReady(),
		Subtotal:      o.Subtotal,
		TaxRate:       o.TaxRate,
		Tax:           o.Tax,
		Discount:      o.Discount,
		Total:         o.Total,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CompletedAt:   o.CompletedAt,
		CancelledAt:   o.CancelledAt,
	}
}

type ResendAcceptedResponse struct {
	Resent int `json:"resent"`
}
