package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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

type mockCartService struct {
	GetFunc            func(ctx context.Context, tenantID, tableID string) (*domain.Cart, error)
	AddItemFunc        func(ctx context.Context, tenantID, tableID string, item domain.CartItem) (*domain.Cart, error)
	RemoveItemFunc     func(ctx context.Context, tenantID, tableID, lineID string) (*domain.Cart, error)
	UpdateQuantityFunc func(ctx context.Context, tenantID, tableID, lineID string, quantity int) (*domain.Cart, error)
	ClearFunc          func(ctx context.Context, tenantID, tableID string) error
}

func (m *mockCartService) Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error) {
	return m.GetFunc(ctx, tenantID, tableID)
}

func (m *mockCartService) AddItem(ctx context.Context, tenantID, tableID string, item domain.CartItem) (*domain.Cart, error) {
	return m.AddItemFunc(ctx, tenantID, tableID, item)
}

func (m *mockCartService) RemoveItem(ctx context.Context, tenantID, tableID, lineID string) (*domain.Cart, error) {
	return m.RemoveItemFunc(ctx, tenantID, tableID, lineID)
}

func (m *mockCartService) UpdateQuantity(ctx context.Context, tenantID, tableID, lineID string, quantity int) (*domain.Cart, error) {
	return m.UpdateQuantityFunc(ctx, tenantID, tableID, lineID, quantity)
}

func (m *mockCartService) Clear(ctx context.Context, tenantID, tableID string) error {
	return m.ClearFunc(ctx, tenantID, tableID)
}

func newRouter(svc CartService) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.Tenant)
	NewCartController(svc, zap.NewNop()).Routes(r)
	return r
}

func TestCartController_AddItem(t *testing.T) {
	svc := &mockCartService{
		AddItemFunc: func(ctx context.Context, tenantID, tableID string, item domain.CartItem) (*domain.Cart, error) {
			assert.Equal(t, "t1", tenantID)
			assert.Equal(t, "tb1", tableID)
			assert.Equal(t, "m1", item.MenuItemID)
			item.LineID = "l1"
			return &domain.Cart{TenantID: tenantID, TableID: tableID, Items: []domain.CartItem{item}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/tables/tb1/cart/items",
		strings.NewReader(`{"menuItemId":"m1","quantity":2,"price":3}`))
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp dto.CartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 6.0, resp.DisplayTotal)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "l1", resp.Items[0].LineID)
}

func TestCartController_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tables/tb1/cart/items", strings.NewReader(`{`))
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()
	newRouter(&mockCartService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartController_RemoveMissingLine(t *testing.T) {
	svc := &mockCartService{
		RemoveItemFunc: func(ctx context.Context, tenantID, tableID, lineID string) (*domain.Cart, error) {
			return nil, apperrors.NewNotFoundError("cart line l9 not found")
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/tables/tb1/cart/items/l9", nil)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartController_Clear(t *testing.T) {
	cleared := false
	svc := &mockCartService{
		ClearFunc: func(ctx context.Context, tenantID, tableID string) error {
			cleared = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/tables/tb1/cart", nil)
	req.Header.Set(httpx.HeaderTenantID, "t1")
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, cleared)
}
