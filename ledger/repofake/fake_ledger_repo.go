package ledgerrepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-ledger-sync/ledger"
)

var _ ledger.Repo = (*FakeLedgerRepo)(nil)

type FakeLedgerRepo struct {
	journals    map[string]map[string]ledger.Header // tenant -> journal id
	lines       map[string]map[string]ledger.Line   // tenant -> line id
	tracking    map[string]map[string]ledger.Tracking // tenant -> line id|category id
	checkpoints map[string]ledger.Checkpoint // tenant|resource
	persistErrs map[string]error
	persists    int
	lock        sync.RWMutex
}

func NewFakeLedgerRepo() *FakeLedgerRepo {
	return &FakeLedgerRepo{
		journals:    make(map[string]map[string]ledger.Header),
		lines:       make(map[string]map[string]ledger.Line),
		tracking:    make(map[string]map[string]ledger.Tracking),
		checkpoints: make(map[string]ledger.Checkpoint),
		persistErrs: make(map[string]error),
	}
}

// FailPersist makes every Persist for tenantID fail with err. A nil err clears it.
func (r *FakeLedgerRepo) FailPersist(tenantID string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err == nil {
		delete(r.persistErrs, tenantID)
		return
	}
	r.persistErrs[tenantID] = err
}

func (r *FakeLedgerRepo) Checkpoint(_ context.Context, tenantID, resource string) (ledger.Checkpoint, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	cp, ok := r.checkpoints[tenantID+"|"+resource]
	if !ok {
		return ledger.Checkpoint{TenantID: tenantID, Resource: resource}, nil
	}
	return cp, nil
}

func (r *FakeLedgerRepo) Persist(_ context.Context, batch ledger.Batch, next ledger.Checkpoint) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.persistErrs[batch.TenantID]; err != nil {
		return 0, err
	}
	r.persists++

	if r.journals[batch.TenantID] == nil {
		r.journals[batch.TenantID] = make(map[string]ledger.Header)
		r.lines[batch.TenantID] = make(map[string]ledger.Line)
		r.tracking[batch.TenantID] = make(map[string]ledger.Tracking)
	}
	inserted := 0
	for _, h := range batch.Headers {
		if _, ok := r.journals[batch.TenantID][h.JournalID]; ok {
			continue
		}
		r.journals[batch.TenantID][h.JournalID] = h
		inserted++
	}
	for _, l := range batch.Lines {
		if _, ok := r.lines[batch.TenantID][l.JournalLineID]; !ok {
			r.lines[batch.TenantID][l.JournalLineID] = l
		}
	}
	for _, t := range batch.Tracking {
		k := t.JournalLineID + "|" + t.TrackingCategoryID
		if _, ok := r.tracking[batch.TenantID][k]; !ok {
			r.tracking[batch.TenantID][k] = t
		}
	}

	key := next.TenantID + "|" + next.Resource
	cur := r.checkpoints[key]
	if next.LastSequenceNumber < cur.LastSequenceNumber {
		next.LastSequenceNumber = cur.LastSequenceNumber
	}
	if cur.LastUpdate.After(next.LastUpdate) {
		next.LastUpdate = cur.LastUpdate
	}
	r.checkpoints[key] = next
	return inserted, nil
}

func (r *FakeLedgerRepo) JournalCount(tenantID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.journals[tenantID])
}

func (r *FakeLedgerRepo) LineCount(tenantID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.lines[tenantID])
}

func (r *FakeLedgerRepo) TrackingCount(tenantID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.tracking[tenantID])
}

// Persists counts successful Persist calls.
func (r *FakeLedgerRepo) Persists() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.persists
}
