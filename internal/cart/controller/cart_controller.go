package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/dto"
	"comanda/internal/httpx"
)

type CartService interface {
	Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error)
	AddItem(ctx context.Context, tenantID, tableID string, item domain.CartItem) (*domain.Cart, error)
	RemoveItem(ctx context.Context, tenantID, tableID, lineID string) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, tenantID, tableID, lineID string, quantity int) (*domain.Cart, error)
	Clear(ctx context.Context, tenantID, tableID string) error
}

type CartController struct {
	service CartService
	logger  *zap.Logger
}

func NewCartController(service CartService, logger *zap.Logger) *CartController {
	return &CartController{service: service, logger: logger}
}

func (c *CartController) Routes(r chi.Router) {
	r.Get("/tables/{tableId}/cart", c.Get)
	r.Post("/tables/{tableId}/cart/items", c.AddItem)
	r.Patch("/tables/{tableId}/cart/items/{lineId}", c.UpdateQuantity)
	r.Delete("/tables/{tableId}/cart/items/{lineId}", c.RemoveItem)
	r.Delete("/tables/{tableId}/cart", c.Clear)
}

func (c *CartController) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := c.service.Get(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "tableId"))
	c.respond(w, r, http.StatusOK, cart, err)
}

func (c *CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	var req dto.AddCartItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	cart, err := c.service.AddItem(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "tableId"), domain.CartItem{
		MenuItemID:   req.MenuItemID,
		Name:         req.Name,
		Quantity:     req.Quantity,
		Price:        req.Price,
		Modifiers:    req.Modifiers,
		Notes:        req.Notes,
		CourseNumber: req.CourseNumber,
	})
	c.respond(w, r, http.StatusCreated, cart, err)
}

func (c *CartController) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateCartQuantityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	cart, err := c.service.UpdateQuantity(r.Context(), httpx.TenantID(r.Context()),
		chi.URLParam(r, "tableId"), chi.URLParam(r, "lineId"), req.Quantity)
	c.respond(w, r, http.StatusOK, cart, err)
}

func (c *CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := c.service.RemoveItem(r.Context(), httpx.TenantID(r.Context()),
		chi.URLParam(r, "tableId"), chi.URLParam(r, "lineId"))
	c.respond(w, r, http.StatusOK, cart, err)
}

func (c *CartController) Clear(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Clear(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "tableId")); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CartController) respond(w http.ResponseWriter, r *http.Request, status int, cart *domain.Cart, err error) {
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, status, dto.CartResponse{Cart: *cart, DisplayTotal: cart.DisplayTotal()})
}
