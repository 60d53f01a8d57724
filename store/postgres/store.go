// Package postgres implements the loyalty store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	loyaltystore "github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
)

// compile-time interface check
var _ loyaltystore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("loyalty/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("loyalty/postgres: migration failed: %w", err)
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
	err := s.pg.NewSelect(m).
		Where("id = $1", businessID).
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
	_, err := s.pg.NewInsert(m).
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
	res, err := s.pg.NewInsert(m).
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
	err := s.pg.NewSelect(m).
		Where("business_id = $1", businessID).
		Where("customer_key = $2", key).
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
	q := s.pg.NewSelect(&models).Where("business_id = $1", businessID)

	argIdx := 1
	if opts.ReferredBy != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("referred_by = $%d", argIdx), opts.ReferredBy)
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
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM loyalty_accounts WHERE business_id = $1
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
		err := s.pg.NewRaw(`
			SELECT COUNT(*) FROM loyalty_accounts WHERE business_id = $1 AND source = $2
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
	err := s.pg.NewRaw(`
		UPDATE loyalty_accounts
		SET referral_count = referral_count + 1, updated_at = $3
		WHERE business_id = $1 AND customer_key = $2
		RETURNING referral_count
	`, businessID, key, now()).Scan(ctx, &count)
	if err != nil {
		if isNoRows(err) {
			return 0, loyalty.ErrAccountNotFound
		}
		return 0, err
	}
	return count, nil
}

// ==================== Ledger Store ====================

// ApplyDelta commits the balance update and the ledger record in one
// statement. The conditional UPDATE rejects an underflow by matching no
// rows, which also skips the dependent INSERT, so a rejected delta leaves
// nothing behind.
func (s *Store) ApplyDelta(ctx context.Context, d loyaltystore.Delta) (int64, error) {
	r := d.Record

	var balance int64
	err := s.pg.NewRaw(`
		WITH applied AS (
			UPDATE loyalty_accounts
			SET points = points + $3, updated_at = $4
			WHERE business_id = $1 AND customer_key = $2 AND points + $3 >= 0
			RETURNING points
		), recorded AS (
			INSERT INTO loyalty_transactions
				(id, business_id, customer_key, type, amount_spent, points_changed,
				 reward_cents, reward_currency, note, created_at)
			SELECT $5, $1, $2, $6, $7, $3, $8, $9, $10, $4 FROM applied
		)
		SELECT points FROM applied
	`, d.BusinessID, d.Key, r.PointsChanged, r.CreatedAt,
		r.ID.String(), string(r.Type), r.AmountSpent.String(),
		r.RewardAmount.Amount, r.RewardAmount.Currency, r.Note,
	).Scan(ctx, &balance)
	if err == nil {
		return balance, nil
	}
	if !isNoRows(err) {
		return 0, err
	}

	// No row matched: either the account is missing or the delta underflows.
	acct, getErr := s.GetAccount(ctx, d.BusinessID, d.Key)
	if getErr != nil {
		return 0, getErr
	}
	return acct.Points, loyalty.ErrWouldUnderflow
}

func (s *Store) ListTransactions(ctx context.Context, businessID, key string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models).
		Where("business_id = $1", businessID).
		Where("customer_key = $2", key).
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
	q := s.pg.NewSelect(&models).
		Where("business_id = $1", businessID).
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
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(points_changed), 0) FROM loyalty_transactions
		WHERE business_id = $1 AND points_changed > 0
	`, businessID).Scan(ctx, &awarded)
	if err != nil {
		return 0, 0, err
	}

	var redeemed int64
	err = s.pg.NewRaw(`
		SELECT COALESCE(-SUM(points_changed), 0) FROM loyalty_transactions
		WHERE business_id = $1 AND points_changed < 0
	`, businessID).Scan(ctx, &redeemed)
	if err != nil {
		return 0, 0, err
	}

	return awarded, redeemed, nil
}

// ==================== Helpers ====================

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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
