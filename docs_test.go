package loyalty_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/types"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and behave as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use a grove-backed store in production)
		store := memory.New()

		// Create engine
		e := loyalty.New(store,
			loyalty.WithLogger(slog.Default()),
		)

		// Start the engine
		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// A business parameterizes earn rates and referral rewards
		if err := store.PutBusiness(ctx, &business.Business{
			ID:                 "demo",
			Name:               "Demo Business",
			PointsPerDollar:    decimal.NewFromInt(2),
			ReferralsForReward: 3,
			ReferralReward:     types.USD(500), // $5.00
		}); err != nil {
			t.Fatal(err)
		}

		// Allocate an anonymous 6-digit identity
		acct, err := e.CreateIdentity(ctx, "demo")
		if err != nil {
			t.Fatal(err)
		}

		// Earn and redeem points
		added, balance, err := e.EarnPoints(ctx, "demo", acct.Key, decimal.RequireFromString("12.50"))
		if err != nil {
			t.Fatal(err)
		}
		if added != 25 || balance != 25 {
			t.Fatalf("earn: got added=%d balance=%d, want 25/25", added, balance)
		}

		balance, err = e.RedeemPoints(ctx, "demo", acct.Key, 10)
		if err != nil {
			t.Fatal(err)
		}
		if balance != 15 {
			t.Fatalf("redeem: balance = %d, want 15", balance)
		}

		// Register a phone-keyed customer with a referrer
		referred, isNew, err := e.RegisterCustomer(ctx, "demo", "+1 (555) 123-4567", acct.Key, "")
		if err != nil {
			t.Fatal(err)
		}
		if !isNew || referred.ReferredBy != acct.Key {
			t.Fatalf("register: isNew=%v referredBy=%q", isNew, referred.ReferredBy)
		}

		// Dashboard projection
		stats, err := e.Stats(ctx, "demo")
		if err != nil {
			t.Fatal(err)
		}
		if stats.CustomerCount != 2 {
			t.Fatalf("stats: CustomerCount = %d, want 2", stats.CustomerCount)
		}
	})
}
