package loyalty

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/identity"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

// Engine is the loyalty-points and referral ledger engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	generator *identity.Generator
	clock     func() time.Time

	// Background workers
	referralRetries chan referralRetry
	stopChan        chan struct{}
	wg              sync.WaitGroup

	// Configuration
	identityRetries     int
	referralRetryDelay  time.Duration
	maxReferralAttempts int
	autoMigrate         bool
}

// New creates a new Engine backed by the given store.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:               s,
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		generator:           identity.NewGenerator(nil),
		clock:               time.Now,
		referralRetries:     make(chan referralRetry, 1024),
		stopChan:            make(chan struct{}),
		identityRetries:     5,
		referralRetryDelay:  2 * time.Second,
		maxReferralAttempts: 5,
		autoMigrate:         true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source. Tests pin it for deterministic timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRandSource sets the randomness used for loyalty code generation.
func WithRandSource(src identity.Source) Option {
	return func(e *Engine) {
		e.generator = identity.NewGenerator(src)
	}
}

// WithIdentityRetries sets how many codes are tried before
// ErrIdentityExhausted.
func WithIdentityRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.identityRetries = n
		}
	}
}

// WithReferralRetryBuffer sets the capacity of the referral retry queue.
func WithReferralRetryBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.referralRetries = make(chan referralRetry, n)
		}
	}
}

// WithReferralRetryDelay sets the interval between referral retry sweeps.
func WithReferralRetryDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.referralRetryDelay = d
		}
	}
}

// WithAutoMigrate controls whether Start migrates the store before the
// workers come up. Enabled by default; disable when migrations are managed
// externally.
func WithAutoMigrate(enabled bool) Option {
	return func(e *Engine) {
		e.autoMigrate = enabled
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if e.autoMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.referralRetryWorker(ctx)

	e.logger.Info("loyalty engine started",
		"identity_retries", e.identityRetries,
		"referral_retry_delay", e.referralRetryDelay,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Identity
// ──────────────────────────────────────────────────

// CreateIdentity allocates a fresh 6-digit loyalty code under the business
// and creates its zero-balance account. Codes are drawn uniformly; on a
// collision with an existing key another code is tried, up to the configured
// retry count, after which ErrIdentityExhausted is returned.
func (e *Engine) CreateIdentity(ctx context.Context, businessID string) (*account.CustomerAccount, error) {
	if businessID == "" {
		return nil, ValidationError{Field: "businessId", Message: "required"}
	}
	if _, err := e.store.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	for range e.identityRetries {
		code := e.generator.LoyaltyCode()

		acct := &account.CustomerAccount{
			Entity:     types.NewEntityAt(e.clock()),
			ID:         id.NewAccountID(),
			BusinessID: businessID,
			Key:        code,
			Source:     account.SourceDirect,
		}

		err := e.store.CreateAccount(ctx, acct)
		if err == nil {
			e.logger.Debug("identity created", "business_id", businessID, "key", code)
			e.plugins.EmitIdentityCreated(ctx, businessID, code)
			return acct, nil
		}
		if !IsRuleRejection(err) {
			return nil, err
		}
		// Collision: draw again.
	}

	return nil, ErrIdentityExhausted
}

// ──────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────

// RegisterCustomer registers a phone-keyed account, idempotently. The phone
// is normalized to its canonical 10-digit key; an existing account under
// that key is returned unchanged with isNew=false.
//
// A referrer, when given, must resolve to a different existing account in
// the same business. The referrer's count is incremented in its own atomic
// unit after the account commits; if that increment fails the registration
// still succeeds and the increment is queued for retry.
func (e *Engine) RegisterCustomer(ctx context.Context, businessID, phone, referredBy string, src account.Source) (*account.CustomerAccount, bool, error) {
	if businessID == "" {
		return nil, false, ValidationError{Field: "businessId", Message: "required"}
	}

	key, err := identity.NormalizePhone(phone)
	if err != nil {
		return nil, false, err
	}

	if src == "" {
		src = account.SourceDirect
	}
	if !account.ValidSource(src) {
		return nil, false, ValidationError{Field: "source", Message: "unknown source " + string(src)}
	}

	if _, err := e.store.GetBusiness(ctx, businessID); err != nil {
		return nil, false, err
	}

	referrerKey := ""
	if referredBy != "" {
		referrerKey, err = e.resolveReferrer(ctx, businessID, referredBy, key)
		if err != nil {
			return nil, false, err
		}
		src = account.SourceReferral
	}

	acct := &account.CustomerAccount{
		Entity:     types.NewEntityAt(e.clock()),
		ID:         id.NewAccountID(),
		BusinessID: businessID,
		Key:        key,
		ReferredBy: referrerKey,
		Source:     src,
	}

	if err := e.store.CreateAccount(ctx, acct); err != nil {
		if !IsRuleRejection(err) {
			return nil, false, err
		}
		// Already registered: idempotent success.
		existing, getErr := e.store.GetAccount(ctx, businessID, key)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}

	e.logger.Info("customer registered",
		"business_id", businessID,
		"key", key,
		"source", src,
		"referred_by", referrerKey,
	)
	e.plugins.EmitCustomerRegistered(ctx, acct)

	if referrerKey != "" {
		e.creditReferral(ctx, businessID, referrerKey)
	}

	return acct, true, nil
}

// resolveReferrer normalizes and validates a referrer reference. It accepts
// either a loyalty code or a phone number and returns the canonical key.
func (e *Engine) resolveReferrer(ctx context.Context, businessID, referredBy, selfKey string) (string, error) {
	referrerKey := referredBy
	if !identity.IsLoyaltyCode(referredBy) {
		normalized, err := identity.NormalizePhone(referredBy)
		if err != nil {
			return "", ValidationError{Field: "referredBy", Message: "not a loyalty code or phone number"}
		}
		referrerKey = normalized
	}

	if referrerKey == selfKey {
		return "", ErrSelfReferral
	}

	if _, err := e.store.GetAccount(ctx, businessID, referrerKey); err != nil {
		if IsNotFound(err) {
			return "", ErrReferrerNotFound
		}
		return "", err
	}

	return referrerKey, nil
}

// creditReferral increments the referrer's count. Failures are queued for
// the retry worker rather than failing the registration.
func (e *Engine) creditReferral(ctx context.Context, businessID, referrerKey string) {
	newCount, err := e.store.IncrementReferralCount(ctx, businessID, referrerKey)
	if err == nil {
		e.plugins.EmitReferralRecorded(ctx, businessID, referrerKey, newCount)
		e.noteRewardDue(ctx, businessID, referrerKey, newCount)
		return
	}

	e.logger.Warn("referral credit failed, queueing retry",
		"business_id", businessID,
		"referrer", referrerKey,
		"error", err,
	)

	select {
	case e.referralRetries <- referralRetry{businessID: businessID, key: referrerKey}:
	default:
		e.logger.Error("referral retry queue full, dropping credit",
			"business_id", businessID,
			"referrer", referrerKey,
		)
	}
}

// noteRewardDue logs when a referrer's count crosses the business reward
// threshold, prompting the merchant to follow up with a GrantReward.
func (e *Engine) noteRewardDue(ctx context.Context, businessID, key string, count int64) {
	b, err := e.store.GetBusiness(ctx, businessID)
	if err != nil {
		return
	}
	if b.RewardDue(count) {
		e.logger.Info("referral reward due",
			"business_id", businessID,
			"key", key,
			"referral_count", count,
			"reward", b.ReferralReward.String(),
		)
	}
}

// ──────────────────────────────────────────────────
// Ledger operations
// ──────────────────────────────────────────────────

// EarnPoints credits points for a purchase:
// pointsAdded = floor(amountSpent × business.pointsPerDollar).
func (e *Engine) EarnPoints(ctx context.Context, businessID, key string, amountSpent decimal.Decimal) (int64, int64, error) {
	if amountSpent.IsNegative() {
		return 0, 0, ValidationError{Field: "amountSpent", Message: "must not be negative"}
	}

	b, err := e.store.GetBusiness(ctx, businessID)
	if err != nil {
		return 0, 0, err
	}

	pointsAdded := b.PointsFor(amountSpent)
	now := e.clock()

	rec := &transaction.Record{
		ID:            id.NewTransactionID(),
		BusinessID:    businessID,
		Key:           key,
		Type:          transaction.TypeEarn,
		AmountSpent:   amountSpent,
		PointsChanged: pointsAdded,
		CreatedAt:     now,
	}

	newBalance, err := e.store.ApplyDelta(ctx, store.Delta{
		BusinessID: businessID,
		Key:        key,
		Record:     rec,
	})
	if err != nil {
		return 0, 0, err
	}

	e.logger.Debug("points earned",
		"business_id", businessID,
		"key", key,
		"points", pointsAdded,
		"balance", newBalance,
	)
	e.plugins.EmitPointsEarned(ctx, businessID, key, pointsAdded, newBalance)

	return pointsAdded, newBalance, nil
}

// RedeemPoints debits points from an account. A balance check runs first as
// a fast fail; the store's atomic delta remains the authority, so a
// concurrent drain between the check and the write still rejects cleanly
// with ErrInsufficientPoints.
func (e *Engine) RedeemPoints(ctx context.Context, businessID, key string, points int64) (int64, error) {
	if points <= 0 {
		return 0, ValidationError{Field: "points", Message: "must be positive"}
	}

	acct, err := e.store.GetAccount(ctx, businessID, key)
	if err != nil {
		return 0, err
	}
	if acct.Points < points {
		e.plugins.EmitRedemptionDenied(ctx, businessID, key, points, acct.Points)
		return acct.Points, ErrInsufficientPoints
	}

	rec := &transaction.Record{
		ID:            id.NewTransactionID(),
		BusinessID:    businessID,
		Key:           key,
		Type:          transaction.TypeRedeem,
		PointsChanged: -points,
		CreatedAt:     e.clock(),
	}

	newBalance, err := e.store.ApplyDelta(ctx, store.Delta{
		BusinessID: businessID,
		Key:        key,
		Record:     rec,
	})
	if err != nil {
		if IsRuleRejection(err) {
			e.plugins.EmitRedemptionDenied(ctx, businessID, key, points, newBalance)
			return newBalance, ErrInsufficientPoints
		}
		return 0, err
	}

	e.logger.Debug("points redeemed",
		"business_id", businessID,
		"key", key,
		"points", points,
		"balance", newBalance,
	)
	e.plugins.EmitPointsRedeemed(ctx, businessID, key, points, newBalance)

	return newBalance, nil
}

// GrantReward appends a monetary referral reward to the account's history.
// The reward amount is metadata on the record; the point balance is not
// changed.
func (e *Engine) GrantReward(ctx context.Context, businessID, key string, reward types.Money, note string) (*transaction.Record, error) {
	if reward.IsNegative() {
		return nil, ValidationError{Field: "reward", Message: "must not be negative"}
	}

	rec := &transaction.Record{
		ID:           id.NewTransactionID(),
		BusinessID:   businessID,
		Key:          key,
		Type:         transaction.TypeReward,
		RewardAmount: reward,
		Note:         note,
		CreatedAt:    e.clock(),
	}

	if _, err := e.store.ApplyDelta(ctx, store.Delta{
		BusinessID: businessID,
		Key:        key,
		Record:     rec,
	}); err != nil {
		return nil, err
	}

	e.logger.Info("reward granted",
		"business_id", businessID,
		"key", key,
		"reward", reward.String(),
	)
	e.plugins.EmitRewardGranted(ctx, businessID, key, reward)

	return rec, nil
}

// CheckPoints returns the current balance for an account.
func (e *Engine) CheckPoints(ctx context.Context, businessID, key string) (int64, error) {
	acct, err := e.store.GetAccount(ctx, businessID, key)
	if err != nil {
		return 0, err
	}
	return acct.Points, nil
}

// ──────────────────────────────────────────────────
// Referral retry worker
// ──────────────────────────────────────────────────

type referralRetry struct {
	businessID string
	key        string
	attempts   int
}

// referralRetryWorker drains the retry queue, re-attempting referral credits
// that failed during registration. Increments are plain +1 operations, so a
// retry after an ambiguous failure is the accepted inconsistency of the
// two-step registration flow.
func (e *Engine) referralRetryWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.referralRetryDelay)
	defer ticker.Stop()

	var pending []referralRetry

	for {
		select {
		case <-e.stopChan:
			// Final drain, one attempt each.
			for {
				select {
				case r := <-e.referralRetries:
					pending = append(pending, r)
				default:
					for _, r := range pending {
						e.retryReferral(ctx, r)
					}
					return
				}
			}

		case r := <-e.referralRetries:
			pending = append(pending, r)

		case <-ticker.C:
			remaining := pending[:0]
			for _, r := range pending {
				if next, ok := e.retryReferral(ctx, r); !ok {
					remaining = append(remaining, next)
				}
			}
			pending = remaining
		}
	}
}

// retryReferral attempts one credit. It returns ok=true when the entry is
// finished, either credited or abandoned after too many attempts.
func (e *Engine) retryReferral(ctx context.Context, r referralRetry) (referralRetry, bool) {
	newCount, err := e.store.IncrementReferralCount(ctx, r.businessID, r.key)
	if err == nil {
		e.plugins.EmitReferralRecorded(ctx, r.businessID, r.key, newCount)
		e.noteRewardDue(ctx, r.businessID, r.key, newCount)
		return r, true
	}

	r.attempts++
	if r.attempts >= e.maxReferralAttempts {
		e.logger.Error("abandoning referral credit",
			"business_id", r.businessID,
			"referrer", r.key,
			"attempts", r.attempts,
			"error", err,
		)
		return r, true
	}

	return r, false
}
