// Package ledger turns the provider's journal feed into durable per-tenant rows and
// keeps the checkpoint that incremental sync resumes from.
package ledger

import (
	"time"

	"github.com/jrsteele09/go-ledger-sync/xero"
)

// ResourceJournals names the journal feed in the checkpoint table.
const ResourceJournals = "journals"

type Header struct {
	TenantID       string
	JournalID      string
	JournalNumber  int64
	JournalDate    time.Time
	CreatedDateUTC time.Time
	Reference      string
	SourceID       string
	SourceType     string
}

type Line struct {
	TenantID      string
	JournalLineID string
	JournalID     string
	JournalNumber int64
	AccountID     string
	AccountCode   string
	AccountType   string
	AccountName   string
	Description   string
	NetAmount     float64
	GrossAmount   float64
	TaxAmount     float64
	TaxType       string
	TaxName       string
}

type Tracking struct {
	TenantID           string
	JournalLineID      string
	TrackingCategoryID string
	TrackingOptionID   string
	Name               string
	Option             string
}

// Batch is one fetched page decomposed into rows. It is written all or nothing.
type Batch struct {
	TenantID string
	Headers  []Header
	Lines    []Line
	Tracking []Tracking
}

func (b Batch) Len() int {
	return len(b.Headers)
}

// Checkpoint is the highest journal number durably stored for a tenant's resource.
type Checkpoint struct {
	TenantID           string
	Resource           string
	LastSequenceNumber int64
	LastUpdate         time.Time
}

// Advance returns the checkpoint after b is persisted. It never moves backwards.
func (c Checkpoint) Advance(b Batch) Checkpoint {
	next := c
	for _, h := range b.Headers {
		if h.JournalNumber > next.LastSequenceNumber {
			next.LastSequenceNumber = h.JournalNumber
		}
		if h.CreatedDateUTC.After(next.LastUpdate) {
			next.LastUpdate = h.CreatedDateUTC
		}
	}
	return next
}

// Decompose splits journals into header, line and tracking rows. Journals numbered at or
// below after are dropped, the provider's offset filter can overlap the checkpoint.
func Decompose(tenantID string, journals []xero.Journal, after int64) Batch {
	b := Batch{TenantID: tenantID}
	for _, j := range journals {
		if j.JournalNumber <= after {
			continue
		}
		b.Headers = append(b.Headers, Header{
			TenantID:       tenantID,
			JournalID:      j.JournalID,
			JournalNumber:  j.JournalNumber,
			JournalDate:    j.JournalDate.Time,
			CreatedDateUTC: j.CreatedDateUTC.Time,
			Reference:      j.Reference,
			SourceID:       j.SourceID,
			SourceType:     j.SourceType,
		})
		for _, l := range j.JournalLines {
			b.Lines = append(b.Lines, Line{
				TenantID:      tenantID,
				JournalLineID: l.JournalLineID,
				JournalID:     j.JournalID,
				JournalNumber: j.JournalNumber,
				AccountID:     l.AccountID,
				AccountCode:   l.AccountCode,
				AccountType:   l.AccountType,
				AccountName:   l.AccountName,
				Description:   l.Description,
				NetAmount:     l.NetAmount,
				GrossAmount:   l.GrossAmount,
				TaxAmount:     l.TaxAmount,
				TaxType:       l.TaxType,
				TaxName:       l.TaxName,
			})
			for _, tc := range l.TrackingCategories {
				b.Tracking = append(b.Tracking, Tracking{
					TenantID:           tenantID,
					JournalLineID:      l.JournalLineID,
					TrackingCategoryID: tc.TrackingCategoryID,
					TrackingOptionID:   tc.TrackingOptionID,
					Name:               tc.Name,
					Option:             tc.Option,
				})
			}
		}
	}
	return b
}
