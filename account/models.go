// Package account defines the customer account model: the per-business
// point balance keyed by loyalty code or normalized phone number.
package account

import (
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/types"
)

// Source records how a customer was acquired.
type Source string

const (
	SourceDirect   Source = "direct"
	SourceReferral Source = "referral"
	SourceSocial   Source = "social"
	SourceOther    Source = "other"
)

// ValidSource reports whether s is a known acquisition source.
func ValidSource(s Source) bool {
	switch s {
	case SourceDirect, SourceReferral, SourceSocial, SourceOther:
		return true
	}
	return false
}

// CustomerAccount is one customer's balance within one business's program.
// Key is the identity key: a 6-digit loyalty code or a normalized 10-digit
// phone number. (BusinessID, Key) is unique; the same key may exist under
// different businesses as independent accounts.
type CustomerAccount struct {
	types.Entity
	ID            id.AccountID `json:"id"`
	BusinessID    string       `json:"business_id"`
	Key           string       `json:"key"`
	Points        int64        `json:"points"`
	ReferredBy    string       `json:"referred_by,omitempty"`
	ReferralCount int64        `json:"referral_count"`
	Source        Source       `json:"source"`
}

// HasReferrer reports whether this account was registered with a referrer.
func (a *CustomerAccount) HasReferrer() bool { return a.ReferredBy != "" }

// OrderBy selects the sort order for account listings.
type OrderBy string

const (
	// OrderRecency sorts newest-first by creation time.
	OrderRecency OrderBy = "recency"
	// OrderReferralCount sorts by referral count descending, with earliest
	// creation time breaking ties.
	OrderReferralCount OrderBy = "referral_count"
)

// ListOpts filters and orders account listings.
type ListOpts struct {
	// ReferredBy restricts results to accounts referred by the given key.
	ReferredBy string
	// HasReferrals restricts results to accounts with referralCount > 0.
	HasReferrals bool
	// OrderBy defaults to OrderRecency when empty.
	OrderBy OrderBy
	// Limit caps the result set; <= 0 means no cap.
	Limit int
	// Offset skips the first N results.
	Offset int
}
