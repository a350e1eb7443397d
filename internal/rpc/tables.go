package rpc

import (
	"context"
	"net/http"
	"net/url"

	"comanda/internal/domain"
)

type TableClient struct {
	client *Client
}

func NewTableClient(client *Client) *TableClient {
	return &TableClient{client: client}
}

func (t *TableClient) GetTable(ctx context.Context, tenantID, id string) (*domain.TableInfo, error) {
	var table domain.TableInfo
	if err := t.client.Call(ctx, http.MethodGet, "/tables/"+url.PathEscape(id), tenantID, nil, &table); err != nil {
		return nil, err
	}
	return &table, nil
}
