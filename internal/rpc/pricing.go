package rpc

import (
	"context"
	"net/http"
	"net/url"

	"comanda/internal/domain"
)

// PricingClient reads authoritative prices and availability from the catalog.
type PricingClient struct {
	client *Client
}

func NewPricingClient(client *Client) *PricingClient {
	return &PricingClient{client: client}
}

func (p *PricingClient) GetMenuItem(ctx context.Context, tenantID, id string) (*domain.MenuItem, error) {
	var item domain.MenuItem
	if err := p.client.Call(ctx, http.MethodGet, "/menu-items/"+url.PathEscape(id), tenantID, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (p *PricingClient) GetModifierGroup(ctx context.Context, tenantID, id string) (*domain.ModifierGroup, error) {
	var group domain.ModifierGroup
	if err := p.client.Call(ctx, http.MethodGet, "/modifier-groups/"+url.PathEscape(id), tenantID, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (p *PricingClient) GetModifierOption(ctx context.Context, tenantID, id string) (*domain.ModifierOption, error) {
	var option domain.ModifierOption
	if err := p.client.Call(ctx, http.MethodGet, "/modifier-options/"+url.PathEscape(id), tenantID, nil, &option); err != nil {
		return nil, err
	}
	return &option, nil
}
