package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// ==================== Business models ====================

type businessModel struct {
	grove.BaseModel `grove:"table:loyalty_businesses"`

	ID                 string    `grove:"id,pk"`
	Name               string    `grove:"name"`
	PointsPerDollar    string    `grove:"points_per_dollar"`
	ReferralsForReward int64     `grove:"referrals_for_reward"`
	RewardCents        int64     `grove:"reward_cents"`
	RewardCurrency     string    `grove:"reward_currency"`
	ThemeColor         string    `grove:"theme_color"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
}

func toBusinessModel(b *business.Business) *businessModel {
	return &businessModel{
		ID:                 b.ID,
		Name:               b.Name,
		PointsPerDollar:    b.PointsPerDollar.String(),
		ReferralsForReward: b.ReferralsForReward,
		RewardCents:        b.ReferralReward.Amount,
		RewardCurrency:     b.ReferralReward.Currency,
		ThemeColor:         b.ThemeColor,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func fromBusinessModel(m *businessModel) (*business.Business, error) {
	ppd, err := decimal.NewFromString(m.PointsPerDollar)
	if err != nil {
		return nil, err
	}

	return &business.Business{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 m.ID,
		Name:               m.Name,
		PointsPerDollar:    ppd,
		ReferralsForReward: m.ReferralsForReward,
		ReferralReward:     types.Money{Amount: m.RewardCents, Currency: m.RewardCurrency},
		ThemeColor:         m.ThemeColor,
	}, nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:loyalty_accounts"`

	ID            string    `grove:"id,pk"`
	BusinessID    string    `grove:"business_id"`
	CustomerKey   string    `grove:"customer_key"`
	Points        int64     `grove:"points"`
	ReferredBy    string    `grove:"referred_by"`
	ReferralCount int64     `grove:"referral_count"`
	Source        string    `grove:"source"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.CustomerAccount) *accountModel {
	return &accountModel{
		ID:            a.ID.String(),
		BusinessID:    a.BusinessID,
		CustomerKey:   a.Key,
		Points:        a.Points,
		ReferredBy:    a.ReferredBy,
		ReferralCount: a.ReferralCount,
		Source:        string(a.Source),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.CustomerAccount, error) {
	acctID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}

	return &account.CustomerAccount{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            acctID,
		BusinessID:    m.BusinessID,
		Key:           m.CustomerKey,
		Points:        m.Points,
		ReferredBy:    m.ReferredBy,
		ReferralCount: m.ReferralCount,
		Source:        account.Source(m.Source),
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:loyalty_transactions"`

	ID             string    `grove:"id,pk"`
	BusinessID     string    `grove:"business_id"`
	CustomerKey    string    `grove:"customer_key"`
	Type           string    `grove:"type"`
	AmountSpent    string    `grove:"amount_spent"`
	PointsChanged  int64     `grove:"points_changed"`
	RewardCents    int64     `grove:"reward_cents"`
	RewardCurrency string    `grove:"reward_currency"`
	Note           string    `grove:"note"`
	CreatedAt      time.Time `grove:"created_at"`
}

func fromTransactionModel(m *transactionModel) (*transaction.Record, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(m.AmountSpent)
	if err != nil {
		return nil, err
	}

	return &transaction.Record{
		ID:            txnID,
		BusinessID:    m.BusinessID,
		Key:           m.CustomerKey,
		Type:          transaction.Type(m.Type),
		AmountSpent:   amount,
		PointsChanged: m.PointsChanged,
		RewardAmount:  types.Money{Amount: m.RewardCents, Currency: m.RewardCurrency},
		Note:          m.Note,
		CreatedAt:     m.CreatedAt,
	}, nil
}
