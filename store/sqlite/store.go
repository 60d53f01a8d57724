// Package sqlite implements the loyalty store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/id"
	loyaltystore "github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// compile-time interface check
var _ loyaltystore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("loyalty/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("loyalty/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Business Store ====================

func (s *Store) GetBusiness(ctx context.Context, businessID string) (*business.Business, error) {
	m := new(businessModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", businessID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrBusinessNotFound
		}
		return nil, err
	}
	return fromBusinessModel(m)
}

func (s *Store) PutBusiness(ctx context.Context, b *business.Business) error {
	m := toBusinessModel(b)
	m.UpdatedAt = now()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("points_per_dollar = EXCLUDED.points_per_dollar").
		Set("referrals_for_reward = EXCLUDED.referrals_for_reward").
		Set("reward_cents = EXCLUDED.reward_cents").
		Set("reward_currency = EXCLUDED.reward_currency").
		Set("theme_color = EXCLUDED.theme_color").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.CustomerAccount) error {
	m := toAccountModel(a)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(business_id, customer_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return loyalty.ErrDuplicateKey
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, businessID, key string) (*account.CustomerAccount, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("business_id = ?", businessID).
		Where("customer_key = ?", key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loyalty.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) ListAccounts(ctx context.Context, businessID string, opts account.ListOpts) ([]*account.CustomerAccount, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models).Where("business_id = ?", businessID)

	if opts.ReferredBy != "" {
		q = q.Where("referred_by = ?", opts.ReferredBy)
	}
	if opts.HasReferrals {
		q = q.Where("referral_count > 0")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	switch opts.OrderBy {
	case account.OrderReferralCount:
		q = q.OrderExpr("referral_count DESC, created_at ASC")
	default:
		q = q.OrderExpr("created_at DESC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*account.CustomerAccount, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CountAccounts(ctx context.Context, businessID string) (int64, error) {
	var count int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM loyalty_accounts WHERE business_id = ?
	`, businessID).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CountAccountsBySource(ctx context.Context, businessID string) (map[account.Source]int64, error) {
	sources := []account.Source{
		account.SourceDirect,
		account.SourceReferral,
		account.SourceSocial,
		account.SourceOther,
	}

	result := make(map[account.Source]int64, len(sources))
	for _, src := range sources {
		var count int64
		err := s.sdb.NewRaw(`
			SELECT COUNT(*) FROM loyalty_accounts WHERE business_id = ? AND source = ?
		`, businessID, string(src)).Scan(ctx, &count)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			result[src] = count
		}
	}
	return result, nil
}

func (s *Store) IncrementReferralCount(ctx context.Context, businessID, key string) (int64, error) {
	var count int64
	err := s.sdb.NewRaw(`
		UPDATE loyalty_accounts
		SET referral_count = referral_count + 1, updated_at = ?
		WHERE business_id = ? AND customer_key = ?
		RETURNING referral_count
	`, now(), businessID, key).Scan(ctx, &count)
	if err != nil {
		if isNoRows(err) {
			return 0, loyalty.ErrAccountNotFound
		}
		return 0, err
	}
	return count, nil
}

// ==================== Ledger Store ====================

// ApplyDelta commits the balance update and the record append as one
// statement: the guarded SELECT admits the record only while the balance
// stays non-negative, and the insert trigger applies the delta to the
// account within that same statement. A rejected guard inserts nothing.
func (s *Store) ApplyDelta(ctx context.Context, d loyaltystore.Delta) (int64, error) {
	r := d.Record

	var inserted string
	err := s.sdb.NewRaw(`
		INSERT INTO loyalty_transactions
		    (id, business_id, customer_key, type, amount_spent, points_changed,
		     reward_cents, reward_currency, note, created_at)
		SELECT ?, business_id, customer_key, ?, ?, ?, ?, ?, ?, ?
		FROM loyalty_accounts
		WHERE business_id = ? AND customer_key = ? AND points + ? >= 0
		RETURNING id
	`, r.ID.String(), string(r.Type), r.AmountSpent.String(), r.PointsChanged,
		r.RewardAmount.Amount, r.RewardAmount.Currency, r.Note, r.CreatedAt,
		d.BusinessID, d.Key, r.PointsChanged).Scan(ctx, &inserted)
	if err != nil {
		if !isNoRows(err) {
			return 0, err
		}
		acct, getErr := s.GetAccount(ctx, d.BusinessID, d.Key)
		if getErr != nil {
			return 0, getErr
		}
		return acct.Points, loyalty.ErrWouldUnderflow
	}

	acct, err := s.GetAccount(ctx, d.BusinessID, d.Key)
	if err != nil {
		return 0, err
	}
	return acct.Points, nil
}

func (s *Store) ListTransactions(ctx context.Context, businessID, key string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	var models []transactionModel
	q := s.sdb.NewSelect(&models).
		Where("business_id = ?", businessID).
		Where("customer_key = ?", key).
		OrderExpr("created_at DESC, id DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromTransactionModels(models)
}

func (s *Store) ListBusinessTransactions(ctx context.Context, businessID string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	var models []transactionModel
	q := s.sdb.NewSelect(&models).
		Where("business_id = ?", businessID).
		OrderExpr("created_at DESC, id DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromTransactionModels(models)
}

func (s *Store) PointTotals(ctx context.Context, businessID string) (int64, int64, error) {
	var awarded int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(points_changed), 0) FROM loyalty_transactions
		WHERE business_id = ? AND points_changed > 0
	`, businessID).Scan(ctx, &awarded)
	if err != nil {
		return 0, 0, err
	}

	var redeemed int64
	err = s.sdb.NewRaw(`
		SELECT COALESCE(-SUM(points_changed), 0) FROM loyalty_transactions
		WHERE business_id = ? AND points_changed < 0
	`, businessID).Scan(ctx, &redeemed)
	if err != nil {
		return 0, 0, err
	}

	return awarded, redeemed, nil
}

// ==================== Models ====================

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

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
