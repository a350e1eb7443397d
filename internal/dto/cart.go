package dto

import "comanda/internal/domain"

type AddCartItemRequest struct {
	MenuItemID   string                `json:"menuItemId"`
	Name         string                `json:"name,omitempty"`
	Quantity     int                   `json:"quantity"`
	Price        float64               `json:"price"`
	Modifiers    []domain.CartModifier `json:"modifiers,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	CourseNumber int                   `json:"courseNumber,omitempty"`
}

type UpdateCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	domain.Cart
	DisplayTotal float64 `json:"displayTotal"`
}
