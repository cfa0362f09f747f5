package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/internal/metrics"
	"github.com/jrsteele09/go-ledger-sync/xero"
	"github.com/rs/zerolog/log"
)

// JournalSource is a tenant bound client that can page the journal feed.
type JournalSource interface {
	TenantID() string
	ListJournals(ctx context.Context, p xero.JournalParams) ([]xero.Journal, error)
}

type State int

const (
	StateIdle State = iota
	StateFetching
	StatePersisting
	StateCaughtUp
	StateMoreAvailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StatePersisting:
		return "persisting"
	case StateCaughtUp:
		return "caught_up"
	case StateMoreAvailable:
		return "more_available"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial" // some pages persisted before the failure
	StatusError   Status = "error"
)

// Result is the outcome of one sync attempt for one tenant. It is always returned,
// failures are carried in Err.
type Result struct {
	TenantID    string    `json:"tenant_id"`
	Status      Status    `json:"status"`
	Done        bool      `json:"done"` // caught up, no more pages known
	Entries     int       `json:"entries"`
	Pages       int       `json:"pages"`
	Checkpoint  int64     `json:"checkpoint"`
	LastUpdate  time.Time `json:"last_update,omitempty"`
	Description string    `json:"description"`
	Err         error     `json:"-"`
}

type Engine struct {
	repo     Repo
	pageSize int
	metrics  metrics.Recorder
	nowFunc  func() time.Time

	lock    sync.Mutex
	running map[string]bool
	states  map[string]State
}

type EngineOption func(*Engine)

func WithMetrics(m metrics.Recorder) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithNowFunc(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

// WithPageSize overrides the provider page size used as the caught up signal.
func WithPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func NewEngine(repo Repo, options ...EngineOption) *Engine {
	e := &Engine{
		repo:     repo,
		pageSize: xero.JournalPageSize,
		metrics:  metrics.Noop(),
		nowFunc:  time.Now,
		running:  make(map[string]bool),
		states:   make(map[string]State),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// State reports where the tenant's current or last attempt is.
func (e *Engine) State(tenantID string) State {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.states[tenantID]
}

// SyncOnce fetches and persists a single page. Done reports whether the tenant is caught up.
func (e *Engine) SyncOnce(ctx context.Context, src JournalSource) Result {
	return e.run(ctx, src, 1)
}

// Backfill pages until a short page shows the tenant is caught up.
func (e *Engine) Backfill(ctx context.Context, src JournalSource) Result {
	return e.run(ctx, src, 0)
}

func (e *Engine) run(ctx context.Context, src JournalSource, maxPages int) Result {
	tenantID := src.TenantID()
	start := e.nowFunc()

	if !e.acquire(tenantID) {
		res := Result{TenantID: tenantID, Status: StatusError, Err: apperrors.ErrSyncInProgress}
		res.Description = fmt.Sprintf("Sync already running for tenant %s", tenantID)
		return res
	}
	defer e.release(tenantID)

	res := e.sync(ctx, src, maxPages)
	e.metrics.RecordSyncResult(string(res.Status), res.Entries, e.nowFunc().Sub(start))

	logger := log.With().Str("tenant_id", tenantID).Int("entries", res.Entries).Int("pages", res.Pages).
		Int64("checkpoint", res.Checkpoint).Logger()
	if res.Err != nil {
		logger.Err(res.Err).Str("status", string(res.Status)).Msg("journal sync failed")
	} else {
		logger.Info().Bool("done", res.Done).Msg("journal sync finished")
	}
	return res
}

func (e *Engine) sync(ctx context.Context, src JournalSource, maxPages int) Result {
	tenantID := src.TenantID()
	res := Result{TenantID: tenantID}

	cp, err := e.repo.Checkpoint(ctx, tenantID, ResourceJournals)
	if err != nil {
		return e.fail(res, apperrors.Wrapf(err, "[ledger sync] loading checkpoint for %s", tenantID))
	}
	cp.TenantID, cp.Resource = tenantID, ResourceJournals
	res.Checkpoint, res.LastUpdate = cp.LastSequenceNumber, cp.LastUpdate

	for maxPages == 0 || res.Pages < maxPages {
		e.setState(tenantID, StateFetching)
		journals, err := src.ListJournals(ctx, xero.JournalParams{Offset: cp.LastSequenceNumber})
		if err != nil {
			return e.fail(res, apperrors.Wrapf(err, "[ledger sync] fetching journals after %d", cp.LastSequenceNumber))
		}
		res.Pages++

		batch := Decompose(tenantID, journals, cp.LastSequenceNumber)
		if err := ctx.Err(); err != nil {
			return e.fail(res, err)
		}

		if batch.Len() > 0 {
			e.setState(tenantID, StatePersisting)
			next := cp.Advance(batch)
			inserted, err := e.repo.Persist(ctx, batch, next)
			if err != nil {
				return e.fail(res, fmt.Errorf("%w: %w", apperrors.ErrPersistFailed, err))
			}
			cp = next
			res.Entries += inserted
			res.Checkpoint, res.LastUpdate = cp.LastSequenceNumber, cp.LastUpdate
		}

		// A full page that brought nothing new would fetch the same offset forever.
		if len(journals) < e.pageSize || batch.Len() == 0 {
			if len(journals) >= e.pageSize {
				log.Warn().Str("tenant_id", tenantID).Int64("offset", cp.LastSequenceNumber).
					Msg("full journal page with no new entries, treating as caught up")
			}
			e.setState(tenantID, StateCaughtUp)
			res.Done = true
			break
		}
		e.setState(tenantID, StateMoreAvailable)
	}

	res.Status = StatusSuccess
	res.Description = describe(res)
	return res
}

func (e *Engine) fail(res Result, err error) Result {
	res.Err = err
	res.Status = StatusError
	if res.Entries > 0 {
		res.Status = StatusPartial
	}
	res.Description = fmt.Sprintf("%s\nError: %v", describe(res), err)
	return res
}

func describe(res Result) string {
	return fmt.Sprintf("Updated %d Journal entries\nLast Journal number: %d", res.Entries, res.Checkpoint)
}

func (e *Engine) acquire(tenantID string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.running[tenantID] {
		return false
	}
	e.running[tenantID] = true
	e.states[tenantID] = StateIdle
	return true
}

func (e *Engine) release(tenantID string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	delete(e.running, tenantID)
	e.states[tenantID] = StateIdle
}

func (e *Engine) setState(tenantID string, s State) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.states[tenantID] = s
}
