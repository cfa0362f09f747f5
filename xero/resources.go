package xero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
)

// JournalParams select a page of the journal feed. Offset returns journals with a
// JournalNumber greater than it, at most JournalPageSize of them.
type JournalParams struct {
	Offset        int64
	ModifiedSince time.Time
	PaymentsOnly  bool
}

func (t *TenantClient) ListJournals(ctx context.Context, p JournalParams) ([]Journal, error) {
	q := url.Values{}
	if p.Offset > 0 {
		q.Set("offset", strconv.FormatInt(p.Offset, 10))
	}
	if p.PaymentsOnly {
		q.Set("paymentsOnly", "true")
	}
	return getList[Journal](ctx, t, t.client.accountingURL("Journals"), "Journals", q, modifiedSinceHeader(p.ModifiedSince))
}

func (t *TenantClient) listRecords(ctx context.Context, resource string, p ListParams) ([]Record, error) {
	return getList[Record](ctx, t, t.client.accountingURL(resource), resource, p.query(), modifiedSinceHeader(p.ModifiedSince))
}

func (t *TenantClient) ListInvoices(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "Invoices", p)
}

func (t *TenantClient) ListAccounts(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "Accounts", p)
}

func (t *TenantClient) ListContacts(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "Contacts", p)
}

func (t *TenantClient) ListBankTransactions(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "BankTransactions", p)
}

func (t *TenantClient) ListCreditNotes(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "CreditNotes", p)
}

func (t *TenantClient) ListManualJournals(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "ManualJournals", p)
}

func (t *TenantClient) ListTrackingCategories(ctx context.Context, p ListParams) ([]Record, error) {
	return t.listRecords(ctx, "TrackingCategories", p)
}

// GetTrialBalance returns the report as of date (YYYY-MM-DD); a zero date means today.
func (t *TenantClient) GetTrialBalance(ctx context.Context, date time.Time, paymentsOnly bool) ([]Record, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("date", date.Format("2006-01-02"))
	}
	if paymentsOnly {
		q.Set("paymentsOnly", "true")
	}
	return getList[Record](ctx, t, t.client.accountingURL("Reports/TrialBalance"), "Reports", q, nil)
}

// GetOrganisation returns the tenant's organisation details.
func (t *TenantClient) GetOrganisation(ctx context.Context) (Record, error) {
	orgs, err := getList[Record](ctx, t, t.client.accountingURL("Organisation"), "Organisations", nil, nil)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, "no organisation returned")
	}
	return orgs[0], nil
}

func (t *TenantClient) GetInvoice(ctx context.Context, invoiceID string) ([]Record, error) {
	return getList[Record](ctx, t, t.client.accountingURL("Invoices/"+url.PathEscape(invoiceID)), "Invoices", nil, nil)
}

func (t *TenantClient) GetCreditNote(ctx context.Context, creditNoteID string) ([]Record, error) {
	return getList[Record](ctx, t, t.client.accountingURL("CreditNotes/"+url.PathEscape(creditNoteID)), "CreditNotes", nil, nil)
}

// UpdateManualJournal posts payload to the manual journal and returns the updated entity.
func (t *TenantClient) UpdateManualJournal(ctx context.Context, manualJournalID string, payload any) ([]Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[UpdateManualJournal] encoding payload")
	}
	envelope, err := t.send(ctx, http.MethodPost, t.client.accountingURL("ManualJournals/"+url.PathEscape(manualJournalID)), nil, nil, body)
	if err != nil {
		return nil, err
	}
	return extract[Record](envelope, "ManualJournals")
}

type AssetParams struct {
	Page     int // 1 based, defaults to 1
	PageSize int // defaults to 200
	Status   string
	FilterBy string
	OrderBy  string
}

// ListAssets reads the fixed asset register, which lives on its own API.
func (t *TenantClient) ListAssets(ctx context.Context, p AssetParams) ([]Record, error) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 200
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("pageSize", strconv.Itoa(p.PageSize))
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.FilterBy != "" {
		q.Set("filterBy", p.FilterBy)
	}
	if p.OrderBy != "" {
		q.Set("orderBy", p.OrderBy)
	}
	return getList[Record](ctx, t, t.client.apiBase+"/assets.xro/1.0/Assets", "items", q, nil)
}
