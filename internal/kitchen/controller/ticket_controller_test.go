package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/dto"
	apperrors "comanda/internal/errors"
	"comanda/internal/httpx"
)

type mockTicketService struct {
	GetFunc            func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	ListActiveFunc     func(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error)
	StartFunc          func(ctx context.Context, tenantID, ticketID, chefID string) (*domain.KitchenTicket, error)
	StartItemsFunc     func(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error)
	MarkItemsReadyFunc func(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error)
	MarkReadyFunc      func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	BumpFunc           func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	CancelFunc         func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	PauseFunc          func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	ResumeFunc         func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error)
	RecallItemFunc     func(ctx context.Context, tenantID, ticketID, itemID, reason string) (*domain.KitchenTicket, error)
	RequeueItemFunc    func(ctx context.Context, tenantID, ticketID, itemID string) (*domain.KitchenTicket, error)
	SetPriorityFunc    func(ctx context.Context, tenantID, ticketID, priority string) (*domain.KitchenTicket, error)
}

func (m *mockTicketService) Get(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return m.GetFunc(ctx, tenantID, ticketID)
}

func (m *mockTicketService) ListActive(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error) {
	return m.ListActiveFunc(ctx, tenantID)
}

func (m *mockTicketService) Start(ctx context.Context, tenantID, ticketID, chefID string) (*domain.KitchenTicket, error) {
	return m.StartFunc(ctx, tenantID, ticketID, chefID)
}

func (m *mockTicketService) StartItems(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error) {
	return m.StartItemsFunc(ctx, tenantID, ticketID, itemIDs)
}

func (m *mockTicketService) MarkItemsReady(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error) {
	return m.MarkItemsReadyFunc(ctx, tenantID, ticketID, itemIDs)
}

func (m *mockTicketService) MarkReady(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return m.MarkReadyFunc(ctx, tenantID, ticketID)
}

func (m *mockTicketService) Bump(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return m.BumpFunc(ctx, tenantID, ticketID)
}

func (m *mockTicketService) Cancel(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return m.CancelFunc(ctx, tenantID, ticketID)
}

func (m *mockTicketService) Pause(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return m.PauseFunc(ctx, tenantID, ticketID)
}

func (m *mockTicketService) Resume(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return m.ResumeFunc(ctx, tenantID, ticketID)
}

func (m *mockTicketService) RecallItem(ctx context.Context, tenantID, ticketID, itemID, reason string) (*domain.KitchenTicket, error) {
	return m.RecallItemFunc(ctx, tenantID, ticketID, itemID, reason)
}

func (m *mockTicketService) RequeueItem(ctx context.Context, tenantID, ticketID, itemID string) (*domain.KitchenTicket, error) {
	return m.RequeueItemFunc(ctx, tenantID, ticketID, itemID)
}

func (m *mockTicketService) SetPriority(ctx context.Context, tenantID, ticketID, priority string) (*domain.KitchenTicket, error) {
	return m.SetPriorityFunc(ctx, tenantID, ticketID, priority)
}

type fakeFeed struct {
	tenant       string
	unsubscribed chan struct{}
}

func (f *fakeFeed) Subscribe(tenantID string, ch chan *nats.Msg) (func(), error) {
	f.tenant = tenantID
	ch <- &nats.Msg{Data: []byte(`{"tenantId":"t1","tickets":[]}`)}
	return func() { close(f.unsubscribed) }, nil
}

func newRouter(svc TicketService, feed TimerFeed) http.Handler {
	c := NewTicketController(svc, feed, zap.NewNop())
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(httpx.Tenant)
		c.Routes(r)
	})
	return r
}

func sampleTicket() *domain.KitchenTicket {
	return &domain.KitchenTicket{
		ID:                "k1",
		TenantID:          "t1",
		TicketNumber:      "#004",
		Status:            domain.TicketStatusInProgress,
		Priority:          domain.PriorityNormal,
		ElapsedSeconds:    700,
		WarningThreshold:  600,
		CriticalThreshold: 900,
		Items:             []domain.KitchenTicketItem{{ID: "i1", Status: domain.TicketItemStatusPreparing}},
	}
}

func TestTicketController_Start_UsesActorAsChef(t *testing.T) {
	svc := &mockTicketService{
		StartFunc: func(ctx context.Context, tenantID, ticketID, chefID string) (*domain.KitchenTicket, error) {
			assert.Equal(t, "t1", tenantID)
			assert.Equal(t, "k1", ticketID)
			assert.Equal(t, "chef-9", chefID)
			return sampleTicket(), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/kitchen/tickets/k1/start", nil)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	req.Header.Set(httpx.HeaderActorID, "chef-9")
	rec := httptest.NewRecorder()

	newRouter(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.TicketResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "#004", body.TicketNumber)
	assert.Equal(t, "yellow", body.TimerColor)
	assert.Equal(t, []string{}, body.Items[0].Modifiers)
}

func TestTicketController_MarkItemsReady(t *testing.T) {
	svc := &mockTicketService{
		MarkItemsReadyFunc: func(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error) {
			assert.Equal(t, []string{"i1"}, itemIDs)
			return sampleTicket(), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/kitchen/tickets/k1/items/ready", strings.NewReader(`{"itemIds":["i1"]}`))
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()

	newRouter(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTicketController_EmptyItemIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/kitchen/tickets/k1/items/start", strings.NewReader(`{"itemIds":[]}`))
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()

	newRouter(&mockTicketService{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeValidation, body.Code)
}

func TestTicketController_Bump_InvalidTransition(t *testing.T) {
	svc := &mockTicketService{
		BumpFunc: func(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
			return nil, apperrors.NewInvalidStatusTransitionError("ticket", ticketID, "IN_PROGRESS", "COMPLETED")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/kitchen/tickets/k1/bump", nil)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()

	newRouter(svc, nil).ServeHTTP(rec, req)

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.HTTPStatus(apperrors.CodeInvalidStatusTransition), rec.Code)
	assert.Equal(t, apperrors.CodeInvalidStatusTransition, body.Code)
}

func TestTicketController_RecallItem(t *testing.T) {
	svc := &mockTicketService{
		RecallItemFunc: func(ctx context.Context, tenantID, ticketID, itemID, reason string) (*domain.KitchenTicket, error) {
			assert.Equal(t, "i1", itemID)
			assert.Equal(t, "cold", reason)
			return sampleTicket(), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/kitchen/tickets/k1/items/i1/recall", strings.NewReader(`{"reason":"cold"}`))
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()

	newRouter(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTicketController_ListActive(t *testing.T) {
	svc := &mockTicketService{
		ListActiveFunc: func(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error) {
			return []domain.KitchenTicket{*sampleTicket(), *sampleTicket()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/kitchen/tickets", nil)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()

	newRouter(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []dto.TicketResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body, 2)
}

func TestTicketController_StreamTimers(t *testing.T) {
	feed := &fakeFeed{unsubscribed: make(chan struct{})}
	router := newRouter(&mockTicketService{}, feed)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/kitchen/timers/stream", nil).WithContext(ctx)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after client left")
	}
	<-feed.unsubscribed

	assert.Equal(t, "t1", feed.tenant)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: timers\ndata: {\"tenantId\":\"t1\",\"tickets\":[]}\n\n")
}
