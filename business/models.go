// Package business defines the merchant profile that parameterizes the
// loyalty engine: earn rate, referral threshold and reward.
package business

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/xraph/loyalty/types"
)

// Business is a merchant running a loyalty program. The engine reads these
// records to resolve earn rates and referral rewards; it never writes them.
// Profile management (naming, theming) is an external concern.
type Business struct {
	types.Entity
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	PointsPerDollar    decimal.Decimal `json:"points_per_dollar"`
	ReferralsForReward int64           `json:"referrals_for_reward"`
	ReferralReward     types.Money     `json:"referral_reward"`
	ThemeColor         string          `json:"theme_color,omitempty"`
}

// PointsFor converts an amount spent in dollars to points earned:
// floor(amountSpent × pointsPerDollar). Exact decimal math, no floats.
func (b *Business) PointsFor(amountSpent decimal.Decimal) int64 {
	return amountSpent.Mul(b.PointsPerDollar).Floor().IntPart()
}

// RewardDue reports whether a referrer with the given referral count has
// crossed the reward threshold. A threshold of zero or less disables
// threshold rewards.
func (b *Business) RewardDue(referralCount int64) bool {
	if b.ReferralsForReward <= 0 {
		return false
	}
	return referralCount > 0 && referralCount%b.ReferralsForReward == 0
}

// Provider is the read-only accessor the engine uses to resolve a business.
// The store satisfies it; callers can substitute a static provider in tests.
type Provider interface {
	GetBusiness(ctx context.Context, businessID string) (*Business, error)
}
