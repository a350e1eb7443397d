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
)

type NotificationService interface {
	Get(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	List(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error)
	UnreadCount(ctx context.Context, tenantID string) (int, error)
	MarkRead(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	Archive(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	MarkAllRead(ctx context.Context, tenantID string) (int, error)
}

type NotificationController struct {
	service NotificationService
	logger  *zap.Logger
}

func NewNotificationController(service NotificationService, logger *zap.Logger) *NotificationController {
	return &NotificationController{service: service, logger: logger}
}

func (c *NotificationController) Routes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", c.List)
		r.Get("/unread-count", c.UnreadCount)
		r.Post("/read-all", c.MarkAllRead)
		r.Get("/{notificationId}", c.Get)
		r.Post("/{notificationId}/read", c.MarkRead)
		r.Post("/{notificationId}/archive", c.Archive)
	})
}

func (c *NotificationController) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	list, err := c.service.List(r.Context(), httpx.TenantID(r.Context()), filter)
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	out := make([]dto.NotificationResponse, len(list))
	for i := range list {
		out[i] = dto.NewNotificationResponse(&list[i])
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (c *NotificationController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.UnreadCount(r.Context(), httpx.TenantID(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.UnreadCountResponse{Unread: n})
}

func (c *NotificationController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.MarkAllRead(r.Context(), httpx.TenantID(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.MarkAllReadResponse{Updated: n})
}

func (c *NotificationController) Get(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.Get(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "notificationId"))
	c.respond(w, r, n, err)
}

func (c *NotificationController) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.MarkRead(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "notificationId"))
	c.respond(w, r, n, err)
}

func (c *NotificationController) Archive(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.Archive(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "notificationId"))
	c.respond(w, r, n, err)
}

func (c *NotificationController) respond(w http.ResponseWriter, r *http.Request, n *domain.OrderNotification, err error) {
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.NewNotificationResponse(n))
}

func parseFilter(r *http.Request) (domain.NotificationFilter, error) {
	q := r.URL.Query()
	var f domain.NotificationFilter

	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseNotificationStatus(s)
		if !ok {
			return f, apperrors.NewValidationError("invalid status filter", apperrors.ValidationDetail{
				Field:   "status",
				Message: "status must be one of UNREAD, READ, ARCHIVED",
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
