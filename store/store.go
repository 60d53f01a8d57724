// Package store defines the unified storage contract for the loyalty engine.
package store

import (
	"context"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/transaction"
)

// Delta is one atomic balance mutation paired with the ledger record that
// explains it. Record.PointsChanged carries the signed delta; a zero delta
// (reward grants) appends the record without touching the balance.
type Delta struct {
	BusinessID string
	Key        string
	Record     *transaction.Record
}

// Store is the unified storage interface for all loyalty entities.
// Instead of embedding sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Consistency contract: ApplyDelta and IncrementReferralCount are atomic and
// linearizable per (businessID, key); operations on distinct keys must not
// block each other. ApplyDelta rejects a mutation that would take the balance
// negative with loyalty.ErrWouldUnderflow, leaving balance and ledger
// untouched.
type Store interface {
	// Business methods
	GetBusiness(ctx context.Context, businessID string) (*business.Business, error)
	PutBusiness(ctx context.Context, b *business.Business) error

	// Account methods
	CreateAccount(ctx context.Context, a *account.CustomerAccount) error
	GetAccount(ctx context.Context, businessID, key string) (*account.CustomerAccount, error)
	ListAccounts(ctx context.Context, businessID string, opts account.ListOpts) ([]*account.CustomerAccount, error)
	CountAccounts(ctx context.Context, businessID string) (int64, error)
	CountAccountsBySource(ctx context.Context, businessID string) (map[account.Source]int64, error)
	IncrementReferralCount(ctx context.Context, businessID, key string) (int64, error)

	// Ledger methods
	ApplyDelta(ctx context.Context, d Delta) (int64, error)
	ListTransactions(ctx context.Context, businessID, key string, opts transaction.ListOpts) ([]*transaction.Record, error)
	ListBusinessTransactions(ctx context.Context, businessID string, opts transaction.ListOpts) ([]*transaction.Record, error)
	PointTotals(ctx context.Context, businessID string) (awarded int64, redeemed int64, err error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
