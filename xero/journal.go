package xero

// Journal is one entry of the append-only general ledger feed. JournalNumber increases
// monotonically per organisation and is the sync checkpoint.
type Journal struct {
	JournalID      string        `json:"JournalID"`
	JournalNumber  int64         `json:"JournalNumber"`
	JournalDate    Date          `json:"JournalDate"`
	CreatedDateUTC Date          `json:"CreatedDateUTC"`
	Reference      string        `json:"Reference,omitempty"`
	SourceID       string        `json:"SourceID,omitempty"`
	SourceType     string        `json:"SourceType,omitempty"`
	JournalLines   []JournalLine `json:"JournalLines,omitempty"`
}

type JournalLine struct {
	JournalLineID      string             `json:"JournalLineID"`
	AccountID          string             `json:"AccountID"`
	AccountCode        string             `json:"AccountCode"`
	AccountType        string             `json:"AccountType"`
	AccountName        string             `json:"AccountName"`
	Description        string             `json:"Description,omitempty"`
	NetAmount          float64            `json:"NetAmount"`
	GrossAmount        float64            `json:"GrossAmount"`
	TaxAmount          float64            `json:"TaxAmount"`
	TaxType            string             `json:"TaxType,omitempty"`
	TaxName            string             `json:"TaxName,omitempty"`
	TrackingCategories []TrackingCategory `json:"TrackingCategories,omitempty"`
}

type TrackingCategory struct {
	TrackingCategoryID string `json:"TrackingCategoryID"`
	TrackingOptionID   string `json:"TrackingOptionID,omitempty"`
	Name               string `json:"Name"`
	Option             string `json:"Option"`
}

// Record is an entity returned by the fetch-and-replace resources, kept as decoded JSON.
type Record = map[string]any

// Connection is one organisation the user authorised this application for.
type Connection struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenantId"`
	TenantType     string `json:"tenantType"`
	TenantName     string `json:"tenantName"`
	CreatedDateUTC Date   `json:"createdDateUtc"`
	UpdatedDateUTC Date   `json:"updatedDateUtc"`
}
