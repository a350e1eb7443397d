package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/dto"
	apperrors "comanda/internal/errors"
	"comanda/internal/httpx"
)

type TicketService interface {
	Get(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error)
	Start(ctx context.Context, tenantID, ticketID, chefID string) (*domain.KitchenTicket, error)
	StartItems(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error)
	MarkItemsReady(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error)
	MarkReady(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	Bump(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	Cancel(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	Pause(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	Resume(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	RecallItem(ctx context.Context, tenantID, ticketID, itemID, reason string) (*domain.KitchenTicket, error)
	RequeueItem(ctx context.Context, tenantID, ticketID, itemID string) (*domain.KitchenTicket, error)
	SetPriority(ctx context.Context, tenantID, ticketID, priority string) (*domain.KitchenTicket, error)
}

// TimerFeed delivers the timer broadcasts of one tenant.
type TimerFeed interface {
	Subscribe(tenantID string, ch chan *nats.Msg) (func(), error)
}

const heartbeatInterval = 30 * time.Second

type TicketController struct {
	service TicketService
	feed    TimerFeed
	logger  *zap.Logger
}

func NewTicketController(service TicketService, feed TimerFeed, logger *zap.Logger) *TicketController {
	return &TicketController{
		service: service,
		feed:    feed,
		logger:  logger,
	}
}

func (c *TicketController) Routes(r chi.Router) {
	r.Route("/kitchen/tickets", func(r chi.Router) {
		r.Get("/", c.ListActive)
		r.Get("/{ticketId}", c.Get)
		r.Post("/{ticketId}/start", c.Start)
		r.Post("/{ticketId}/ready", c.MarkReady)
		r.Post("/{ticketId}/bump", c.Bump)
		r.Post("/{ticketId}/cancel", c.Cancel)
		r.Post("/{ticketId}/pause", c.Pause)
		r.Post("/{ticketId}/resume", c.Resume)
		r.Patch("/{ticketId}/priority", c.SetPriority)
		r.Post("/{ticketId}/items/start", c.StartItems)
		r.Post("/{ticketId}/items/ready", c.MarkItemsReady)
		r.Post("/{ticketId}/items/{itemId}/recall", c.RecallItem)
		r.Post("/{ticketId}/items/{itemId}/requeue", c.RequeueItem)
	})
	if c.feed != nil {
		r.Get("/kitchen/timers/stream", c.StreamTimers)
	}
}

func (c *TicketController) ListActive(w http.ResponseWriter, r *http.Request) {
	tickets, err := c.service.ListActive(r.Context(), httpx.TenantID(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}

	out := make([]dto.TicketResponse, len(tickets))
	for i := range tickets {
		out[i] = dto.NewTicketResponse(&tickets[i])
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (c *TicketController) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.Get(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) Start(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.Start(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"), httpx.ActorID(r.Context()))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) StartItems(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeItemIDs(r)
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	ticket, err := c.service.StartItems(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"), ids)
	c.respond(w, r, ticket, err)
}

func (c *TicketController) MarkItemsReady(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeItemIDs(r)
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	ticket, err := c.service.MarkItemsReady(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"), ids)
	c.respond(w, r, ticket, err)
}

func (c *TicketController) MarkReady(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.MarkReady(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) Bump(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.Bump(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) Cancel(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.Cancel(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) Pause(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.Pause(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) Resume(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.Resume(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) RecallItem(w http.ResponseWriter, r *http.Request) {
	var req dto.RecallItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	ticket, err := c.service.RecallItem(r.Context(), httpx.TenantID(r.Context()),
		chi.URLParam(r, "ticketId"), chi.URLParam(r, "itemId"), req.Reason)
	c.respond(w, r, ticket, err)
}

func (c *TicketController) RequeueItem(w http.ResponseWriter, r *http.Request) {
	ticket, err := c.service.RequeueItem(r.Context(), httpx.TenantID(r.Context()),
		chi.URLParam(r, "ticketId"), chi.URLParam(r, "itemId"))
	c.respond(w, r, ticket, err)
}

func (c *TicketController) SetPriority(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPriorityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	ticket, err := c.service.SetPriority(r.Context(), httpx.TenantID(r.Context()), chi.URLParam(r, "ticketId"), req.Priority)
	c.respond(w, r, ticket, err)
}

// StreamTimers relays the tenant's timer broadcasts as Server-Sent Events
// until the client goes away.
func (c *TicketController) StreamTimers(w http.ResponseWriter, r *http.Request) {
	tenantID := httpx.TenantID(r.Context())
	log := httpx.Logger(r, c.logger)

	msgs := make(chan *nats.Msg, 16)
	unsubscribe, err := c.feed.Subscribe(tenantID, msgs)
	if err != nil {
		httpx.WriteError(w, r, c.logger, apperrors.NewInternalError("timer feed unavailable", err))
		return
	}
	defer unsubscribe()

	// The stream outlives the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("write deadline not supported", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Warn("streaming not supported", zap.Error(err))
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgs:
			fmt.Fprintf(w, "event: timers\ndata: %s\n\n", msg.Data)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (c *TicketController) respond(w http.ResponseWriter, r *http.Request, ticket *domain.KitchenTicket, err error) {
	if err != nil {
		httpx.WriteError(w, r, c.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.NewTicketResponse(ticket))
}

func decodeItemIDs(r *http.Request) ([]string, error) {
	var req dto.TicketItemsRequest
	if err := httpx.Decode(r, &req); err != nil {
		return nil, err
	}
	if len(req.ItemIDs) == 0 {
		return nil, apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
			Field:   "itemIds",
			Message: "itemIds must not be empty",
		})
	}
	return req.ItemIDs, nil
}
