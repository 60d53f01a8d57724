// Package mongo implements the loyalty store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	loyaltystore "github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
)

// Collection name constants.
const (
	colBusinesses   = "loyalty_businesses"
	colAccounts     = "loyalty_accounts"
	colTransactions = "loyalty_transactions"
)

// compile-time interface check
var _ loyaltystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all loyalty collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("loyalty/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m businessModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": businessID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, loyalty.ErrBusinessNotFound
		}
		return nil, fmt.Errorf("loyalty/mongo: get business: %w", err)
	}
	return fromBusinessModel(&m)
}

func (s *Store) PutBusiness(ctx context.Context, b *business.Business) error {
	m := toBusinessModel(b)
	m.UpdatedAt = now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{"$set": bson.M{
			"name":                 m.Name,
			"points_per_dollar":    m.PointsPerDollar,
			"referrals_for_reward": m.ReferralsForReward,
			"reward_cents":         m.RewardCents,
			"reward_currency":      m.RewardCurrency,
			"theme_color":          m.ThemeColor,
			"created_at":           m.CreatedAt,
			"updated_at":           m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyalty/mongo: put business: %w", err)
	}
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.CustomerAccount) error {
	m := toAccountModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		// Unique (business_id, customer_key) index enforces one account per key.
		if mongo.IsDuplicateKeyError(err) {
			return loyalty.ErrDuplicateKey
		}
		return fmt.Errorf("loyalty/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, businessID, key string) (*account.CustomerAccount, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"business_id": businessID, "customer_key": key}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, loyalty.ErrAccountNotFound
		}
		return nil, fmt.Errorf("loyalty/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, businessID string, opts account.ListOpts) ([]*account.CustomerAccount, error) {
	var models []accountModel

	filter := bson.M{"business_id": businessID}
	if opts.ReferredBy != "" {
		filter["referred_by"] = opts.ReferredBy
	}
	if opts.HasReferrals {
		filter["referral_count"] = bson.M{"$gt": 0}
	}

	sort := bson.D{{Key: "created_at", Value: -1}}
	if opts.OrderBy == account.OrderReferralCount {
		sort = bson.D{{Key: "referral_count", Value: -1}, {Key: "created_at", Value: 1}}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(sort)

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("loyalty/mongo: list accounts: %w", err)
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
	count, err := s.mdb.Collection(colAccounts).CountDocuments(ctx, bson.M{"business_id": businessID})
	if err != nil {
		return 0, fmt.Errorf("loyalty/mongo: count accounts: %w", err)
	}
	return count, nil
}

func (s *Store) CountAccountsBySource(ctx context.Context, businessID string) (map[account.Source]int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"business_id": businessID}},
		bson.M{"$group": bson.M{
			"_id":   "$source",
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := s.mdb.Collection(colAccounts).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("loyalty/mongo: count by source: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Source string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("loyalty/mongo: count by source decode: %w", err)
	}

	counts := make(map[account.Source]int64, len(results))
	for _, r := range results {
		counts[account.Source(r.Source)] = r.Count
	}
	return counts, nil
}

func (s *Store) IncrementReferralCount(ctx context.Context, businessID, key string) (int64, error) {
	var m accountModel
	err := s.mdb.Collection(colAccounts).FindOneAndUpdate(ctx,
		bson.M{"business_id": businessID, "customer_key": key},
		bson.M{
			"$inc": bson.M{"referral_count": 1},
			"$set": bson.M{"updated_at": now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, loyalty.ErrAccountNotFound
		}
		return 0, fmt.Errorf("loyalty/mongo: increment referral count: %w", err)
	}
	return m.ReferralCount, nil
}

// ==================== Ledger Store ====================

// ApplyDelta guards the balance with a filter predicate: a debit only
// matches documents holding enough points, and FindOneAndUpdate applies the
// increment atomically on the matched document. The record append runs in
// the same session transaction, so the pair commits or aborts together.
// Multi-document transactions require a replica set deployment.
func (s *Store) ApplyDelta(ctx context.Context, d loyaltystore.Delta) (int64, error) {
	r := d.Record

	filter := bson.M{"business_id": d.BusinessID, "customer_key": d.Key}
	if r.PointsChanged < 0 {
		filter["points"] = bson.M{"$gte": -r.PointsChanged}
	}

	sess, err := s.mdb.Collection(colAccounts).Database().Client().StartSession()
	if err != nil {
		return 0, fmt.Errorf("loyalty/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	balance, err := sess.WithTransaction(ctx, func(sc context.Context) (interface{}, error) {
		var m accountModel
		err := s.mdb.Collection(colAccounts).FindOneAndUpdate(sc,
			filter,
			bson.M{
				"$inc": bson.M{"points": r.PointsChanged},
				"$set": bson.M{"updated_at": r.CreatedAt},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&m)
		if err != nil {
			return nil, err
		}

		if _, err := s.mdb.Collection(colTransactions).InsertOne(sc, toTransactionModel(r)); err != nil {
			return nil, err
		}
		return m.Points, nil
	})
	if err != nil {
		if !isNoDocuments(err) {
			return 0, fmt.Errorf("loyalty/mongo: apply delta: %w", err)
		}
		// No document matched: missing account or underflow guard.
		acct, getErr := s.GetAccount(ctx, d.BusinessID, d.Key)
		if getErr != nil {
			return 0, getErr
		}
		return acct.Points, loyalty.ErrWouldUnderflow
	}
	return balance.(int64), nil
}

func (s *Store) ListTransactions(ctx context.Context, businessID, key string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	var models []transactionModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"business_id": businessID, "customer_key": key}).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("loyalty/mongo: list transactions: %w", err)
	}
	return fromTransactionModels(models)
}

func (s *Store) ListBusinessTransactions(ctx context.Context, businessID string, opts transaction.ListOpts) ([]*transaction.Record, error) {
	var models []transactionModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"business_id": businessID}).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("loyalty/mongo: list business transactions: %w", err)
	}
	return fromTransactionModels(models)
}

func (s *Store) PointTotals(ctx context.Context, businessID string) (int64, int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"business_id": businessID}},
		bson.M{"$group": bson.M{
			"_id": nil,
			"awarded": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$gt": bson.A{"$points_changed", 0}}, "$points_changed", 0},
			}},
			"redeemed": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$lt": bson.A{"$points_changed", 0}}, "$points_changed", 0},
			}},
		}},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("loyalty/mongo: point totals: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Awarded  int64 `bson:"awarded"`
		Redeemed int64 `bson:"redeemed"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, fmt.Errorf("loyalty/mongo: point totals decode: %w", err)
	}

	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].Awarded, -results[0].Redeemed, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all loyalty collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colBusinesses: {},
		colAccounts: {
			{
				Keys:    bson.D{{Key: "business_id", Value: 1}, {Key: "customer_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "referred_by", Value: 1}}},
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "referral_count", Value: -1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "customer_key", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
