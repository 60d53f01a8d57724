package loyalty

import (
	"context"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/transaction"
)

// Listing caps for read-side projections.
const (
	// TransactionsLimit caps a per-account transaction listing.
	TransactionsLimit = 50
	// LookupHistoryLimit caps the history attached to a lookup.
	LookupHistoryLimit = 20
	// RecentTransactionsLimit caps the dashboard activity feed.
	RecentTransactionsLimit = 10
	// RecentCustomersLimit caps the dashboard's newest-customers list.
	RecentCustomersLimit = 10
	// TopReferrersLimit caps the referral leaderboard.
	TopReferrersLimit = 10
)

// Stats is the dashboard projection for one business.
type Stats struct {
	CustomerCount       int64                      `json:"customer_count"`
	TotalPointsAwarded  int64                      `json:"total_points_awarded"`
	TotalPointsRedeemed int64                      `json:"total_points_redeemed"`
	SourceCounts        map[account.Source]int64   `json:"source_counts"`
	TopReferrers        []*account.CustomerAccount `json:"top_referrers"`
	RecentCustomers     []*account.CustomerAccount `json:"recent_customers"`
	RecentTransactions  []*transaction.Record      `json:"recent_transactions"`
}

// LookupResult is the merchant-side view of one customer. RewardDue flags a
// referrer whose count sits on the business reward threshold, prompting a
// GrantReward.
type LookupResult struct {
	Account      *account.CustomerAccount   `json:"account"`
	Transactions []*transaction.Record      `json:"transactions"`
	Referrals    []*account.CustomerAccount `json:"referrals"`
	RewardDue    bool                       `json:"reward_due"`
}

// ──────────────────────────────────────────────────
// Read-side projections
// ──────────────────────────────────────────────────

// Business returns the merchant profile.
func (e *Engine) Business(ctx context.Context, businessID string) (*business.Business, error) {
	return e.store.GetBusiness(ctx, businessID)
}

// Transactions returns an account's history, newest first, capped at
// TransactionsLimit.
func (e *Engine) Transactions(ctx context.Context, businessID, key string) ([]*transaction.Record, error) {
	return e.store.ListTransactions(ctx, businessID, key, transaction.ListOpts{
		Limit: TransactionsLimit,
	})
}

// Lookup returns one customer's account, recent history and referred
// accounts.
func (e *Engine) Lookup(ctx context.Context, businessID, key string) (*LookupResult, error) {
	b, err := e.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	acct, err := e.store.GetAccount(ctx, businessID, key)
	if err != nil {
		return nil, err
	}

	history, err := e.store.ListTransactions(ctx, businessID, key, transaction.ListOpts{
		Limit: LookupHistoryLimit,
	})
	if err != nil {
		return nil, err
	}

	referrals, err := e.ReferralsOf(ctx, businessID, key)
	if err != nil {
		return nil, err
	}

	return &LookupResult{
		Account:      acct,
		Transactions: history,
		Referrals:    referrals,
		RewardDue:    b.RewardDue(acct.ReferralCount),
	}, nil
}

// Stats assembles the dashboard projection. Each component is read
// independently; the result is a read-committed snapshot, not a frozen
// point in time.
func (e *Engine) Stats(ctx context.Context, businessID string) (*Stats, error) {
	if _, err := e.store.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	count, err := e.store.CountAccounts(ctx, businessID)
	if err != nil {
		return nil, err
	}

	awarded, redeemed, err := e.store.PointTotals(ctx, businessID)
	if err != nil {
		return nil, err
	}

	sources, err := e.store.CountAccountsBySource(ctx, businessID)
	if err != nil {
		return nil, err
	}

	topReferrers, err := e.TopReferrers(ctx, businessID, TopReferrersLimit)
	if err != nil {
		return nil, err
	}

	recentCustomers, err := e.store.ListAccounts(ctx, businessID, account.ListOpts{
		OrderBy: account.OrderRecency,
		Limit:   RecentCustomersLimit,
	})
	if err != nil {
		return nil, err
	}

	recent, err := e.store.ListBusinessTransactions(ctx, businessID, transaction.ListOpts{
		Limit: RecentTransactionsLimit,
	})
	if err != nil {
		return nil, err
	}

	return &Stats{
		CustomerCount:       count,
		TotalPointsAwarded:  awarded,
		TotalPointsRedeemed: redeemed,
		SourceCounts:        sources,
		TopReferrers:        topReferrers,
		RecentCustomers:     recentCustomers,
		RecentTransactions:  recent,
	}, nil
}
