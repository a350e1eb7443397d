package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/dto"
	apperrors "comanda/internal/errors"
	"comanda/internal/httpx"
	"comanda/internal/order/usecase"
)

type CheckoutUseCase interface {
	Checkout(ctx context.Context, in usecase.CheckoutInput) (*usecase.CheckoutResult, error)
}

type OrderService interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	GetOpenOrder(ctx context.Context, tenantID, tableID string) (*domain.Order, error)
	ListOrders(ctx context.Context, tenantID string, f domain.OrderFilter) ([]domain.Order, error)
	UpdateItemsStatus(ctx context.Context, tenantID, orderID string, change domain.ItemStatusChange) (*domain.Order, error)
	CancelOrder(ctx context.Context, tenantID, orderID, actorID string) (*domain.Order, error)
	ApplyDiscount(ctx context.Context, tenantID, orderID string, discount float64) (*domain.Order, error)
	CompletePayment(ctx context.Context, tenantID, orderID, paymentID string) (*domain.Order, error)
	ResendAccepted(ctx context.Context, tenantID, orderID string) (int, error)
}

type OrderController struct {
	checkout CheckoutUseCase
	service  OrderService
	logger   *zap.Logger
}

func NewOrderController(checkout CheckoutUseCase, service OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{
		checkout: checkout,
		service:  service,
		logger:   logger,
	}
}

func (c *OrderController) Routes(r chi.Router) {
	r.Post("/tables/{tableId}/checkout", c.Checkout)
	r.Get("/tables/{tableId}/order", c.GetOpenOrder)
	r.Get("/orders", c.List)
	r.Get("/orders/{orderId}", c.Get)
	r.Patch("/orders/{orderId}/items/status", c.UpdateItemsStatus)
	r.Post("/orders/{orderId}/cancel", c.Cancel)
	r.Post("/orders/{orderId}/discount", c.ApplyDiscount)
	r.Post("/orders/{orderId}/payment", c.CompletePayment)
}

// InternalRoutes are called by the Kitchen service, never by clients.
func (c *OrderController) InternalRoutes(r chi.Router) {
	r.Get("/internal/orders/{orderId}", c.Get)
	r.Patch("/internal/orders/{orderId}/items/status", c.UpdateItemsStatus)
	r.Post("/internal/orders/{orderId}/items/accepted/resend", c.ResendAccepted)
}

func (c *OrderController) ResendAccepted(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.ResendAccepted(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.ResendAcceptedResponse{Resent: n})
}

func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	waiterID := req.WaiterID
	if waiterID == nil {
		if actor := httpx.ActorID(r.Context()); actor != "" {
			waiterID = &actor
		}
	}

	result, err := c.checkout.Checkout(r.Context(), usecase.CheckoutInput{
		TenantID:     httpx.TenantID(r.Context()),
		TableID:      chi.URLParam(r, "tableId"),
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		WaiterID:     waiterID,
		Notes:        req.Notes,
	})
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Appended {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, dto.NewOrderResponse(result.Order))
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	order, err := c.service.GetOrder(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "orderId"))
	c.respond(w, r, order, err)
}

func (c *OrderController) GetOpenOrder(w http.ResponseWriter, r *http.Request) {
	order, err := c.service.GetOpenOrder(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "tableId"))
	c.respond(w, r, order, err)
}

func (c *OrderController) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r)
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	orders, err := c.service.ListOrders(r.Context(), httpx.TenantID(r.Context()), filter)
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	out := make([]dto.OrderResponse, len(orders))
	for i := range orders {
		out[i] = dto.NewOrderResponse(&orders[i])
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (c *OrderController) UpdateItemsStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateItemsStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	if err := validateItemsStatusRequest(req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	order, err := c.service.UpdateItemsStatus(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "orderId"), domain.ItemStatusChange{
		ItemIDs: req.ItemIDs,
		Status:  domain.ItemStatus(req.Status),
		Reason:  req.Reason,
		ActorID: httpx.ActorID(r.Context()),
	})
	c.respond(w, r, order, err)
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := c.service.CancelOrder(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "orderId"), httpx.ActorID(r.Context()))
	c.respond(w, r, order, err)
}

func (c *OrderController) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyDiscountRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	order, err := c.service.ApplyDiscount(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "orderId"), req.Discount)
	c.respond(w, r, order, err)
}

// CompletePayment is the manual path for cashiers; the payment.completed
// event does the same thing asynchronously.
func (c *OrderController) CompletePayment(w http.ResponseWriter, r *http.Request) {
	order, err := c.service.CompletePayment(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "orderId"), "")
	c.respond(w, r, order, err)
}

func (c *OrderController) respond(w http.ResponseWriter, r *http.Request, order *domain.Order, err error) {
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(order))
}

func validateItemsStatusRequest(req dto.UpdateItemsStatusRequest) error {
	var details []apperrors.ValidationDetail

	if len(req.ItemIDs) == 0 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "itemIds",
			Message: "itemIds must not be empty",
		})
	}
	if len(req.ItemIDs) > 100 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "itemIds",
			Message: "itemIds exceeds maximum of 100",
		})
	}
	for idx, id := range req.ItemIDs {
		if id == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   "itemIds[" + strconv.Itoa(idx) + "]",
				Message: "item id must not be empty",
			})
		}
	}
	if _, ok := domain.ParseItemStatus(req.Status); !ok {
		details = append(details, apperrors.ValidationDetail{
			Field:   "status",
			Message: "status must be one of PENDING, ACCEPTED, PREPARING, READY, SERVED, REJECTED",
		})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func parseOrderFilter(r *http.Request) (domain.OrderFilter, error) {
	q := r.URL.Query()
	var f domain.OrderFilter

	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseOrderStatus(s)
		if !ok {
			return f, apperrors.NewValidationError("invalid status filter", apperrors.ValidationDetail{
				Field:   "status",
				Message: "unknown order status",
			})
		}
		f.Status = &status
	}
	f.TableID = q.Get("tableId")

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return f, apperrors.NewValidationError("invalid limit", apperrors.ValidationDetail{
				Field:   "limit",
				Message: "limit must be a positive integer",
			})
		}
		f.Limit = limit
	}
	return f, nil
}
