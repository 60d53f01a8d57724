// Package memory provides an in-process Store for tests and embedded use.
// Balance mutations are serialized per account entry rather than behind a
// single global write lock, so distinct identity keys never block each other.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
)

// accountEntry pairs an account with its ledger records under one mutex.
// Holding entry.mu serializes balance mutations for that key only; the
// store-level mutex guards the maps and is never held during a mutation.
type accountEntry struct {
	mu      sync.Mutex
	account *account.CustomerAccount
	records []*transaction.Record
}

type Store struct {
	mu sync.RWMutex

	// Business storage
	businesses map[string]*business.Business

	// Account + ledger storage, keyed by businessID then identity key
	accounts map[string]map[string]*accountEntry

	closed bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		businesses: make(map[string]*business.Business),
		accounts:   make(map[string]map[string]*accountEntry),
	}
}

// ── Business methods ────────────────────────────────────────────

func (s *Store) GetBusiness(_ context.Context, businessID string) (*business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.businesses[businessID]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, loyalty.ErrBusinessNotFound
}

func (s *Store) PutBusiness(_ context.Context, b *business.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.businesses[b.ID] = &cp
	return nil
}

// ── Account methods ─────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, a *account.CustomerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.accounts[a.BusinessID]
	if !ok {
		byKey = make(map[string]*accountEntry)
		s.accounts[a.BusinessID] = byKey
	}
	if _, exists := byKey[a.Key]; exists {
		return loyalty.ErrDuplicateKey
	}

	cp := *a
	byKey[a.Key] = &accountEntry{account: &cp}
	return nil
}

func (s *Store) GetAccount(_ context.Context, businessID, key string) (*account.CustomerAccount, error) {
	e, err := s.entry(businessID, key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cp := *e.account
	return &cp, nil
}

func (s *Store) ListAccounts(_ context.Context, businessID string, opts account.ListOpts) ([]*account.CustomerAccount, error) {
	result := make([]*account.CustomerAccount, 0)
	for _, e := range s.entries(businessID) {
		e.mu.Lock()
		a := *e.account
		e.mu.Unlock()

		if opts.ReferredBy != "" && a.ReferredBy != opts.ReferredBy {
			continue
		}
		if opts.HasReferrals && a.ReferralCount == 0 {
			continue
		}
		result = append(result, &a)
	}

	switch opts.OrderBy {
	case account.OrderReferralCount:
		sort.Slice(result, func(i, j int) bool {
			if result[i].ReferralCount != result[j].ReferralCount {
				return result[i].ReferralCount > result[j].ReferralCount
			}
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		})
	default:
		sort.Slice(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) CountAccounts(_ context.Context, businessID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.accounts[businessID])), nil
}

func (s *Store) CountAccountsBySource(_ context.Context, businessID string) (map[account.Source]int64, error) {
	counts := make(map[account.Source]int64)
	for _, e := range s.entries(businessID) {
		e.mu.Lock()
		src := e.account.Source
		e.mu.Unlock()
		counts[src]++
	}
	return counts, nil
}

func (s *Store) IncrementReferralCount(_ context.Context, businessID, key string) (int64, error) {
	e, err := s.entry(businessID, key)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.account.ReferralCount++
	return e.account.ReferralCount, nil
}

// ── Ledger methods ──────────────────────────────────────────────

func (s *Store) ApplyDelta(_ context.Context, d store.Delta) (int64, error) {
	e, err := s.entry(d.BusinessID, d.Key)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	delta := d.Record.PointsChanged
	if e.account.Points+delta < 0 {
		return e.account.Points, loyalty.ErrWouldUnderflow
	}

	e.account.Points += delta
	e.account.Touch(d.Record.CreatedAt)

	rec := *d.Record
	e.records = append(e.records, &rec)
	return e.account.Points, nil
}

func (s *Store) ListTransactions(_ context.Context, businessID, key string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	e, err := s.entry(businessID, key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	records := make([]*transaction.Record, len(e.records))
	for i, r := range e.records {
		cp := *r
		records[i] = &cp
	}
	e.mu.Unlock()

	sortRecords(records)
	return capRecords(records, opts.Limit), nil
}

func (s *Store) ListBusinessTransactions(_ context.Context, businessID string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	records := make([]*transaction.Record, 0)
	for _, e := range s.entries(businessID) {
		e.mu.Lock()
		for _, r := range e.records {
			cp := *r
			records = append(records, &cp)
		}
		e.mu.Unlock()
	}

	sortRecords(records)
	return capRecords(records, opts.Limit), nil
}

func (s *Store) PointTotals(_ context.Context, businessID string) (int64, int64, error) {
	var awarded, redeemed int64
	for _, e := range s.entries(businessID) {
		e.mu.Lock()
		for _, r := range e.records {
			if r.PointsChanged > 0 {
				awarded += r.PointsChanged
			} else {
				redeemed -= r.PointsChanged
			}
		}
		e.mu.Unlock()
	}
	return awarded, redeemed, nil
}

// ── Core methods ────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return loyalty.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// ── helpers ─────────────────────────────────────────────────────

func (s *Store) entry(businessID, key string) (*accountEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.accounts[businessID][key]; ok {
		return e, nil
	}
	return nil, loyalty.ErrAccountNotFound
}

// entries snapshots the entry set for a business so iteration does not hold
// the store lock while taking per-entry locks.
func (s *Store) entries(businessID string) []*accountEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*accountEntry, 0, len(s.accounts[businessID]))
	for _, e := range s.accounts[businessID] {
		result = append(result, e)
	}
	return result
}

func sortRecords(records []*transaction.Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		// Stable order for same-instant records: newest ID first.
		return records[i].ID.String() > records[j].ID.String()
	})
}

func capRecords(records []*transaction.Record, limit int) []*transaction.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
