package mongo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// ==================== Business models ====================

type businessModel struct {
	ID                 string    `bson:"_id"`
	Name               string    `bson:"name"`
	PointsPerDollar    string    `bson:"points_per_dollar"`
	ReferralsForReward int64     `bson:"referrals_for_reward"`
	RewardCents        int64     `bson:"reward_cents"`
	RewardCurrency     string    `bson:"reward_currency"`
	ThemeColor         string    `bson:"theme_color"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
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
	ID            string    `bson:"_id"`
	BusinessID    string    `bson:"business_id"`
	CustomerKey   string    `bson:"customer_key"`
	Points        int64     `bson:"points"`
	ReferredBy    string    `bson:"referred_by"`
	ReferralCount int64     `bson:"referral_count"`
	Source        string    `bson:"source"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
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
	ID             string    `bson:"_id"`
	BusinessID     string    `bson:"business_id"`
	CustomerKey    string    `bson:"customer_key"`
	Type           string    `bson:"type"`
	AmountSpent    string    `bson:"amount_spent"`
	PointsChanged  int64     `bson:"points_changed"`
	RewardCents    int64     `bson:"reward_cents"`
	RewardCurrency string    `bson:"reward_currency"`
	Note           string    `bson:"note"`
	CreatedAt      time.Time `bson:"created_at"`
}

func toTransactionModel(r *transaction.Record) *transactionModel {
	return &transactionModel{
		ID:             r.ID.String(),
		BusinessID:     r.BusinessID,
		CustomerKey:    r.Key,
		Type:           string(r.Type),
		AmountSpent:    r.AmountSpent.String(),
		PointsChanged:  r.PointsChanged,
		RewardCents:    r.RewardAmount.Amount,
		RewardCurrency: r.RewardAmount.Currency,
		Note:           r.Note,
		CreatedAt:      r.CreatedAt,
	}
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

func fromTransactionModels(models []transactionModel) ([]*transaction.Record, error) {
	result := make([]*transaction.Record, len(models))
	for i := range models {
		r, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}
