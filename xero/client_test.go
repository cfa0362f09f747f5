package xero_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/sessions"
	"github.com/jrsteele09/go-ledger-sync/xero"
	"github.com/stretchr/testify/require"
)

// plainDoer sends requests without authorisation, standing in for a TokenSession.
type plainDoer struct{}

func (plainDoer) Do(ctx context.Context, req *sessions.Request) (*http.Response, error) {
	u := req.URL
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = http.Header{}
	}
	return http.DefaultClient.Do(httpReq)
}

func newTenantClient(t *testing.T, handler http.HandlerFunc) *xero.TenantClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return xero.NewClient(plainDoer{}, xero.WithAPIBase(srv.URL)).ForTenant("tenant-1")
}

func TestListJournalsSendsTenantOffsetAndModifiedSince(t *testing.T) {
	var got *http.Request
	c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`{"Journals":[
			{"JournalID":"j-101","JournalNumber":101,"JournalDate":"/Date(1518652800000+0000)/","CreatedDateUTC":"/Date(1518685950940+0000)/",
			 "JournalLines":[{"JournalLineID":"l-1","AccountCode":"200","NetAmount":-10.5,"GrossAmount":-12.08,"TaxAmount":-1.58,
			   "TrackingCategories":[{"TrackingCategoryID":"tc-1","Name":"Region","Option":"North"}]}]}]}`))
	})

	journals, err := c.ListJournals(context.Background(), xero.JournalParams{
		Offset:        100,
		ModifiedSince: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
		PaymentsOnly:  true,
	})
	require.NoError(t, err)

	require.Equal(t, "/api.xro/2.0/Journals", got.URL.Path)
	require.Equal(t, "100", got.URL.Query().Get("offset"))
	require.Equal(t, "true", got.URL.Query().Get("paymentsOnly"))
	require.Equal(t, "tenant-1", got.Header.Get("Xero-tenant-id"))
	require.Equal(t, "application/json", got.Header.Get("Accept"))
	require.Equal(t, "2024-03-01T08:30:00", got.Header.Get("If-Modified-Since"))

	require.Len(t, journals, 1)
	j := journals[0]
	require.Equal(t, int64(101), j.JournalNumber)
	require.Equal(t, time.Date(2018, 2, 15, 9, 12, 30, 940_000_000, time.UTC), j.CreatedDateUTC.Time)
	require.Len(t, j.JournalLines, 1)
	require.Equal(t, -10.5, j.JournalLines[0].NetAmount)
	require.Equal(t, "North", j.JournalLines[0].TrackingCategories[0].Option)
}

func TestListJournalsFirstPageOmitsOffset(t *testing.T) {
	c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.URL.RawQuery)
		require.Empty(t, r.Header.Get("If-Modified-Since"))
		_, _ = w.Write([]byte(`{"Journals":[]}`))
	})
	journals, err := c.ListJournals(context.Background(), xero.JournalParams{})
	require.NoError(t, err)
	require.Empty(t, journals)
}

func TestListResourcesBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		call  func(c *xero.TenantClient) ([]xero.Record, error)
		path  string
		query string
		key   string
	}{
		{"invoices", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListInvoices(context.Background(), xero.ListParams{Where: `Status=="PAID"`, Order: "Date DESC", Page: 2, SummaryOnly: true})
		}, "/api.xro/2.0/Invoices", "order=Date+DESC&page=2&summaryOnly=true&where=Status%3D%3D%22PAID%22", "Invoices"},
		{"accounts", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListAccounts(context.Background(), xero.ListParams{})
		}, "/api.xro/2.0/Accounts", "", "Accounts"},
		{"contacts", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListContacts(context.Background(), xero.ListParams{IncludeArchived: true, Page: 1})
		}, "/api.xro/2.0/Contacts", "includeArchived=true&page=1", "Contacts"},
		{"bank transactions", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListBankTransactions(context.Background(), xero.ListParams{Page: 3})
		}, "/api.xro/2.0/BankTransactions", "page=3", "BankTransactions"},
		{"credit notes", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListCreditNotes(context.Background(), xero.ListParams{})
		}, "/api.xro/2.0/CreditNotes", "", "CreditNotes"},
		{"manual journals", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListManualJournals(context.Background(), xero.ListParams{Order: "Date"})
		}, "/api.xro/2.0/ManualJournals", "order=Date", "ManualJournals"},
		{"tracking categories", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListTrackingCategories(context.Background(), xero.ListParams{IncludeArchived: true})
		}, "/api.xro/2.0/TrackingCategories", "includeArchived=true", "TrackingCategories"},
		{"trial balance", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.GetTrialBalance(context.Background(), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), true)
		}, "/api.xro/2.0/Reports/TrialBalance", "date=2024-06-30&paymentsOnly=true", "Reports"},
		{"assets", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.ListAssets(context.Background(), xero.AssetParams{Status: "REGISTERED", OrderBy: "AssetName"})
		}, "/assets.xro/1.0/Assets", "orderBy=AssetName&page=1&pageSize=200&status=REGISTERED", "items"},
		{"invoice", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.GetInvoice(context.Background(), "inv-1")
		}, "/api.xro/2.0/Invoices/inv-1", "", "Invoices"},
		{"credit note", func(c *xero.TenantClient) ([]xero.Record, error) {
			return c.GetCreditNote(context.Background(), "cn-1")
		}, "/api.xro/2.0/CreditNotes/cn-1", "", "CreditNotes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, tt.path, r.URL.Path)
				require.Equal(t, tt.query, r.URL.RawQuery)
				require.Equal(t, "tenant-1", r.Header.Get("Xero-tenant-id"))
				_, _ = fmt.Fprintf(w, `{%q:[{"ID":"x"}]}`, tt.key)
			})
			records, err := tt.call(c)
			require.NoError(t, err)
			require.Equal(t, []xero.Record{{"ID": "x"}}, records)
		})
	}
}

func TestMissingTopLevelKeyIsMalformed(t *testing.T) {
	c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":"OK"}`))
	})
	_, err := c.ListAccounts(context.Background(), xero.ListParams{})
	require.ErrorIs(t, err, apperrors.ErrMalformedResponse)

	c = newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err = c.ListJournals(context.Background(), xero.JournalParams{})
	require.ErrorIs(t, err, apperrors.ErrMalformedResponse)
}

func TestNotModifiedIsEmpty(t *testing.T) {
	c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	records, err := c.ListContacts(context.Background(), xero.ListParams{ModifiedSince: time.Now()})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestBusinessErrorsSurfaceAsAPIError(t *testing.T) {
	c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Type":"ValidationException"}`))
	})
	_, err := c.ListInvoices(context.Background(), xero.ListParams{})
	var apiErr *xero.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Contains(t, apiErr.Body, "ValidationException")
}

func TestTenantNotSet(t *testing.T) {
	c := xero.NewClient(plainDoer{}).ForTenant("")
	_, err := c.ListJournals(context.Background(), xero.JournalParams{})
	require.ErrorIs(t, err, apperrors.ErrTenantNotSet)
}

func TestGetOrganisationAndUpdateManualJournal(t *testing.T) {
	c := newTenantClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api.xro/2.0/Organisation":
			_, _ = w.Write([]byte(`{"Organisations":[{"Name":"Demo Company","BaseCurrency":"NZD"}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api.xro/2.0/ManualJournals/mj-1":
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			require.JSONEq(t, `{"Narration":"Accrual"}`, string(b))
			_, _ = w.Write([]byte(`{"ManualJournals":[{"ManualJournalID":"mj-1","Narration":"Accrual"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	org, err := c.GetOrganisation(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Demo Company", org["Name"])

	updated, err := c.UpdateManualJournal(context.Background(), "mj-1", map[string]string{"Narration": "Accrual"})
	require.NoError(t, err)
	require.Equal(t, "Accrual", updated[0]["Narration"])
}

func TestConnections(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Xero-tenant-id"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/connections":
			_, _ = w.Write([]byte(`[
				{"id":"conn-a","tenantId":"tenant-a","tenantType":"ORGANISATION","tenantName":"Alpha","createdDateUtc":"2019-07-09T23:40:30.1833130"},
				{"id":"conn-b","tenantId":"tenant-b","tenantType":"ORGANISATION","tenantName":"Beta"}]`))
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/connections/"):
			deleted = strings.TrimPrefix(r.URL.Path, "/connections/")
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := xero.NewClient(plainDoer{}, xero.WithAPIBase(srv.URL))

	conns, err := c.ListConnections(context.Background())
	require.NoError(t, err)
	require.Len(t, conns, 2)
	require.Equal(t, "Alpha", conns[0].TenantName)
	require.Equal(t, 2019, conns[0].CreatedDateUTC.Year())

	require.NoError(t, c.RemoveConnection(context.Background(), "tenant-b"))
	require.Equal(t, "conn-b", deleted)

	require.ErrorIs(t, c.RemoveConnection(context.Background(), "tenant-z"), apperrors.ErrNotFound)
}
