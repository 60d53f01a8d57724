// Package transaction defines the append-only ledger record for every
// balance-affecting or reward event.
package transaction

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Type classifies a ledger record.
type Type string

const (
	// TypeEarn credits points for a purchase.
	TypeEarn Type = "earn"
	// TypeRedeem debits points.
	TypeRedeem Type = "redeem"
	// TypeReward marks a monetary referral reward. Reward records carry
	// PointsChanged == 0: the reward amount is metadata, not balance.
	TypeReward Type = "reward"
)

// ValidType reports whether t is a known record type.
func ValidType(t Type) bool {
	switch t {
	case TypeEarn, TypeRedeem, TypeReward:
		return true
	}
	return false
}

// Record is one immutable ledger entry. The invariant maintained by the
// store is that an account's balance always equals the sum of its records'
// PointsChanged.
type Record struct {
	ID            id.TransactionID `json:"id"`
	BusinessID    string           `json:"business_id"`
	Key           string           `json:"key"`
	Type          Type             `json:"type"`
	AmountSpent   decimal.Decimal  `json:"amount_spent,omitempty"`
	PointsChanged int64            `json:"points_changed"`
	RewardAmount  types.Money      `json:"reward_amount,omitempty"`
	Note          string           `json:"note,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ListOpts bounds transaction listings. Records are always returned
// newest-first.
type ListOpts struct {
	// Limit caps the result set; <= 0 means no cap.
	Limit int
}
