package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/ratelimit"
	"github.com/jrsteele09/go-ledger-sync/sessions"
)

const (
	DefaultAPIBase = "https://api.xero.com"

	HeaderTenantID = "Xero-tenant-id"

	// JournalPageSize is the most journals the provider returns per call.
	JournalPageSize = 100

	maxErrorBody = 4 << 10
)

// Doer sends an authorised request; *sessions.TokenSession implements it.
type Doer interface {
	Do(ctx context.Context, req *sessions.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the provider that was not a rate limit.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xero api responded %d: %s", e.StatusCode, e.Body)
}

// Client is the user scoped client. Resource calls need a TenantClient from ForTenant.
type Client struct {
	doer    Doer
	apiBase string
	pacer   *ratelimit.Pacer
}

type ClientOption func(*Client)

func WithAPIBase(base string) ClientOption {
	return func(c *Client) {
		c.apiBase = base
	}
}

// WithPacer spaces requests per tenant before they are sent.
func WithPacer(p *ratelimit.Pacer) ClientOption {
	return func(c *Client) {
		c.pacer = p
	}
}

func NewClient(doer Doer, options ...ClientOption) *Client {
	c := &Client{doer: doer, apiBase: DefaultAPIBase}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// TenantClient attaches one tenant's id header to every request.
type TenantClient struct {
	client   *Client
	tenantID string
}

func (c *Client) ForTenant(tenantID string) *TenantClient {
	return &TenantClient{client: c, tenantID: tenantID}
}

func (t *TenantClient) TenantID() string {
	return t.tenantID
}

func (c *Client) accountingURL(resource string) string {
	return c.apiBase + "/api.xro/2.0/" + resource
}

// ListParams are the optional arguments shared by the list endpoints. Zero values are omitted.
type ListParams struct {
	ModifiedSince   time.Time // sent as If-Modified-Since
	Where           string
	Order           string
	Page            int
	IncludeArchived bool // contacts and tracking categories
	SummaryOnly     bool // invoices
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Where != "" {
		q.Set("where", p.Where)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.IncludeArchived {
		q.Set("includeArchived", "true")
	}
	if p.SummaryOnly {
		q.Set("summaryOnly", "true")
	}
	return q
}

func modifiedSinceHeader(since time.Time) http.Header {
	h := http.Header{}
	if !since.IsZero() {
		h.Set("If-Modified-Since", since.UTC().Format(modifiedSinceFormat))
	}
	return h
}

// send performs a tenant scoped call. A 304 yields (nil, nil).
func (t *TenantClient) send(ctx context.Context, method, rawURL string, q url.Values, h http.Header, body []byte) (map[string]json.RawMessage, error) {
	if t.tenantID == "" {
		return nil, apperrors.ErrTenantNotSet
	}
	if err := t.client.pacer.Wait(ctx, t.tenantID); err != nil {
		return nil, err
	}

	if h == nil {
		h = http.Header{}
	}
	h.Set(HeaderTenantID, t.tenantID)
	h.Set("Accept", "application/json")
	if body != nil {
		h.Set("Content-Type", "application/json")
	}

	resp, err := t.client.doer.Do(ctx, &sessions.Request{Method: method, URL: rawURL, Query: q, Header: h, Body: body})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, "%s %s: %v", method, rawURL, err)
	}
	return envelope, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
}

// extract decodes the array at key. A missing key is ErrMalformedResponse.
func extract[T any](envelope map[string]json.RawMessage, key string) ([]T, error) {
	if envelope == nil {
		return nil, nil
	}
	raw, ok := envelope[key]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, "response has no %q key", key)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, "decoding %q: %v", key, err)
	}
	return out, nil
}

func getList[T any](ctx context.Context, t *TenantClient, rawURL, key string, q url.Values, h http.Header) ([]T, error) {
	envelope, err := t.send(ctx, http.MethodGet, rawURL, q, h, nil)
	if err != nil {
		return nil, err
	}
	return extract[T](envelope, key)
}
