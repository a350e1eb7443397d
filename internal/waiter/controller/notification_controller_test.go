package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/dto"
	apperrors "comanda/internal/errors"
	"comanda/internal/httpx"
)

type mockNotificationService struct {
	GetFunc         func(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	ListFunc        func(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error)
	UnreadCountFunc func(ctx context.Context, tenantID string) (int, error)
	MarkReadFunc    func(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	ArchiveFunc     func(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	MarkAllReadFunc func(ctx context.Context, tenantID string) (int, error)
}

func (m *mockNotificationService) Get(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	return m.GetFunc(ctx, tenantID, id)
}

func (m *mockNotificationService) List(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error) {
	return m.ListFunc(ctx, tenantID, f)
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, tenantID string) (int, error) {
	return m.UnreadCountFunc(ctx, tenantID)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	return m.MarkReadFunc(ctx, tenantID, id)
}

func (m *mockNotificationService) Archive(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	return m.ArchiveFunc(ctx, tenantID, id)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, tenantID string) (int, error) {
	return m.MarkAllReadFunc(ctx, tenantID)
}

func newRouter(svc NotificationService) http.Handler {
	c := NewNotificationController(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(httpx.Tenant)
		c.Routes(r)
	})
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNotificationController_List(t *testing.T) {
	svc := &mockNotificationService{
		ListFunc: func(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error) {
			require.NotNil(t, f.Status)
			assert.Equal(t, domain.NotificationUnread, *f.Status)
			assert.Equal(t, "tb2", f.TableID)
			return []domain.OrderNotification{{ID: "n1", Status: domain.NotificationUnread, ItemIDs: []string{"a"}}}, nil
		},
	}

	rec := serve(newRouter(svc), http.MethodGet, "/notifications?status=UNREAD&tableId=tb2")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []dto.NotificationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "UNREAD", body[0].Status)
}

func TestNotificationController_List_BadStatus(t *testing.T) {
	rec := serve(newRouter(&mockNotificationService{}), http.MethodGet, "/notifications?status=SEEN")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationController_MarkRead_InvalidTransition(t *testing.T) {
	svc := &mockNotificationService{
		MarkReadFunc: func(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
			return nil, apperrors.NewInvalidStatusTransitionError("notification", id, "ARCHIVED", "READ")
		},
	}

	rec := serve(newRouter(svc), http.MethodPost, "/notifications/n1/read")

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeInvalidStatusTransition, body.Code)
}

func TestNotificationController_UnreadCountAndReadAll(t *testing.T) {
	svc := &mockNotificationService{
		UnreadCountFunc: func(ctx context.Context, tenantID string) (int, error) { return 4, nil },
		MarkAllReadFunc: func(ctx context.Context, tenantID string) (int, error) { return 4, nil },
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodGet, "/notifications/unread-count")
	require.Equal(t, http.StatusOK, rec.Code)
	var count dto.UnreadCountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&count))
	assert.Equal(t, 4, count.Unread)

	rec = serve(router, http.MethodPost, "/notifications/read-all")
	require.Equal(t, http.StatusOK, rec.Code)
	var updated dto.MarkAllReadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, 4, updated.Updated)
}

func TestNotificationController_Archive(t *testing.T) {
	svc := &mockNotificationService{
		ArchiveFunc: func(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
			return &domain.OrderNotification{ID: id, Status: domain.NotificationArchived}, nil
		},
	}

	rec := serve(newRouter(svc), http.MethodPost, "/notifications/n1/archive")

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.NotificationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ARCHIVED", body.Status)
}
