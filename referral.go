package loyalty

import (
	"context"

	"github.com/xraph/loyalty/account"
)

// ──────────────────────────────────────────────────
// Referral graph queries
// ──────────────────────────────────────────────────

// ReferralsOf returns the accounts referred by the given key, newest first.
func (e *Engine) ReferralsOf(ctx context.Context, businessID, key string) ([]*account.CustomerAccount, error) {
	return e.store.ListAccounts(ctx, businessID, account.ListOpts{
		ReferredBy: key,
	})
}

// ReferrerOf returns the account that referred the given key, or nil when
// the account was not referred. A dangling referrer reference also yields
// nil rather than an error.
func (e *Engine) ReferrerOf(ctx context.Context, businessID, key string) (*account.CustomerAccount, error) {
	acct, err := e.store.GetAccount(ctx, businessID, key)
	if err != nil {
		return nil, err
	}
	if !acct.HasReferrer() {
		return nil, nil
	}

	referrer, err := e.store.GetAccount(ctx, businessID, acct.ReferredBy)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return referrer, nil
}

// TopReferrers returns the referral leaderboard: accounts with at least one
// referral, ordered by count descending with earliest registration breaking
// ties.
func (e *Engine) TopReferrers(ctx context.Context, businessID string, limit int) ([]*account.CustomerAccount, error) {
	if limit <= 0 {
		limit = TopReferrersLimit
	}
	return e.store.ListAccounts(ctx, businessID, account.ListOpts{
		HasReferrals: true,
		OrderBy:      account.OrderReferralCount,
		Limit:        limit,
	})
}
