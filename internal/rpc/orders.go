package rpc

import (
	"context"
	"net/http"
	"net/url"

	"comanda/internal/domain"
)

// OrderClient calls the Order service's internal status endpoint. It is the
// only way the kitchen changes authoritative item status.
type OrderClient struct {
	client *Client
}

func NewOrderClient(client *Client) *OrderClient {
	return &OrderClient{client: client}
}

func (o *OrderClient) UpdateItemsStatus(ctx context.Context, tenantID, orderID string, change domain.ItemStatusChange) error {
	path := "/internal/orders/" + url.PathEscape(orderID) + "/items/status"
	return o.client.Call(ctx, http.MethodPatch, path, tenantID, change, nil)
}

type orderSnapshot struct {
	Items []struct {
		ID     string            `json:"id"`
		Status domain.ItemStatus `json:"status"`
	} `json:"items"`
}

// ItemStatuses reads the authoritative status of every item of an order.
func (o *OrderClient) ItemStatuses(ctx context.Context, tenantID, orderID string) (map[string]domain.ItemStatus, error) {
	var out orderSnapshot
	path := "/internal/orders/" + url.PathEscape(orderID)
	if err := o.client.Call(ctx, http.MethodGet, path, tenantID, nil, &out); err != nil {
		return nil, err
	}
	statuses := make(map[string]domain.ItemStatus, len(out.Items))
	for _, item := range out.Items {
		statuses[item.ID] = item.Status
	}
	return statuses, nil
}
