package xero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/sessions"
)

// ListConnections returns the tenants the user has authorised. It is user scoped and
// sends no tenant header.
func (c *Client) ListConnections(ctx context.Context) ([]Connection, error) {
	resp, err := c.doer.Do(ctx, userRequest(http.MethodGet, c.apiBase+"/connections"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var conns []Connection
	if err := json.NewDecoder(resp.Body).Decode(&conns); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, "connections: %v", err)
	}
	return conns, nil
}

// RemoveConnection revokes the user's connection to tenantID. The provider deletes
// connections by connection id, so the id is looked up first.
func (c *Client) RemoveConnection(ctx context.Context, tenantID string) error {
	conns, err := c.ListConnections(ctx)
	if err != nil {
		return err
	}
	var connectionID string
	for _, conn := range conns {
		if conn.TenantID == tenantID {
			connectionID = conn.ID
			break
		}
	}
	if connectionID == "" {
		return apperrors.Wrapf(apperrors.ErrNotFound, "connection for tenant %s", tenantID)
	}

	resp, err := c.doer.Do(ctx, userRequest(http.MethodDelete, c.apiBase+"/connections/"+url.PathEscape(connectionID)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func userRequest(method, rawURL string) *sessions.Request {
	return &sessions.Request{
		Method: method,
		URL:    rawURL,
		Header: http.Header{"Accept": {"application/json"}},
	}
}
