package loyalty_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
)

func TestLookup(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	acct, _, err := eng.RegisterCustomer(ctx, "biz_1", "5551234567", "", "")
	if err != nil {
		t.Fatalf("RegisterCustomer: %v", err)
	}
	if _, _, err := eng.EarnPoints(ctx, "biz_1", acct.Key, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("EarnPoints: %v", err)
	}

	result, err := eng.Lookup(ctx, "biz_1", acct.Key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Account.Key != acct.Key {
		t.Errorf("Account.Key = %q, want %q", result.Account.Key, acct.Key)
	}
	if len(result.Transactions) != 1 {
		t.Errorf("Transactions = %d, want 1", len(result.Transactions))
	}
	if len(result.Referrals) != 0 {
		t.Errorf("Referrals = %d, want 0", len(result.Referrals))
	}

	_, err = eng.Lookup(ctx, "biz_1", "0000000000")
	if !loyalty.IsNotFound(err) {
		t.Errorf("missing lookup error = %v, want not found", err)
	}
}

func TestStats(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	// Three direct registrations; two of them get referred signups.
	phones := []string{"5550000001", "5550000002", "5550000003"}
	for _, p := range phones {
		if _, _, err := eng.RegisterCustomer(ctx, "biz_1", p, "", ""); err != nil {
			t.Fatalf("RegisterCustomer(%s): %v", p, err)
		}
	}

	// 5550000001 refers two customers, 5550000002 refers one.
	referrals := map[string]string{
		"5550000010": "5550000001",
		"5550000011": "5550000001",
		"5550000012": "5550000002",
	}
	for phone, ref := range referrals {
		if _, _, err := eng.RegisterCustomer(ctx, "biz_1", phone, ref, ""); err != nil {
			t.Fatalf("RegisterCustomer(%s): %v", phone, err)
		}
	}

	// One social signup.
	if _, _, err := eng.RegisterCustomer(ctx, "biz_1", "5550000020", "", account.SourceSocial); err != nil {
		t.Fatalf("RegisterCustomer social: %v", err)
	}

	// Some ledger activity: earn 20, redeem 5.
	if _, _, err := eng.EarnPoints(ctx, "biz_1", "5550000001", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("EarnPoints: %v", err)
	}
	if _, err := eng.RedeemPoints(ctx, "biz_1", "5550000001", 5); err != nil {
		t.Fatalf("RedeemPoints: %v", err)
	}

	stats, err := eng.Stats(ctx, "biz_1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.CustomerCount != 7 {
		t.Errorf("CustomerCount = %d, want 7", stats.CustomerCount)
	}
	if stats.TotalPointsAwarded != 20 {
		t.Errorf("TotalPointsAwarded = %d, want 20", stats.TotalPointsAwarded)
	}
	if stats.TotalPointsRedeemed != 5 {
		t.Errorf("TotalPointsRedeemed = %d, want 5", stats.TotalPointsRedeemed)
	}

	if stats.SourceCounts[account.SourceDirect] != 3 {
		t.Errorf("direct = %d, want 3", stats.SourceCounts[account.SourceDirect])
	}
	if stats.SourceCounts[account.SourceReferral] != 3 {
		t.Errorf("referral = %d, want 3", stats.SourceCounts[account.SourceReferral])
	}
	if stats.SourceCounts[account.SourceSocial] != 1 {
		t.Errorf("social = %d, want 1", stats.SourceCounts[account.SourceSocial])
	}

	// Leaderboard: 5550000001 (2 referrals) ahead of 5550000002 (1).
	if len(stats.TopReferrers) != 2 {
		t.Fatalf("TopReferrers = %d, want 2", len(stats.TopReferrers))
	}
	if stats.TopReferrers[0].Key != "5550000001" || stats.TopReferrers[0].ReferralCount != 2 {
		t.Errorf("top referrer = %s (%d), want 5550000001 (2)",
			stats.TopReferrers[0].Key, stats.TopReferrers[0].ReferralCount)
	}
	if stats.TopReferrers[1].Key != "5550000002" {
		t.Errorf("second referrer = %s, want 5550000002", stats.TopReferrers[1].Key)
	}

	if len(stats.RecentCustomers) != 7 {
		t.Errorf("RecentCustomers = %d, want 7", len(stats.RecentCustomers))
	}
	if len(stats.RecentTransactions) != 2 {
		t.Errorf("RecentTransactions = %d, want 2", len(stats.RecentTransactions))
	}

	_, err = eng.Stats(ctx, "biz_missing")
	if !errors.Is(err, loyalty.ErrBusinessNotFound) {
		t.Errorf("missing business error = %v, want ErrBusinessNotFound", err)
	}
}

func TestLookupRewardDue(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	referrer, _, err := eng.RegisterCustomer(ctx, "biz_1", "5550000001", "", "")
	if err != nil {
		t.Fatalf("RegisterCustomer: %v", err)
	}

	// Threshold is 3 referrals; the flag rises exactly on the threshold.
	for i, want := range []bool{false, false, true, false} {
		phone := fmt.Sprintf("55500001%02d", i)
		if _, _, err := eng.RegisterCustomer(ctx, "biz_1", phone, referrer.Key, ""); err != nil {
			t.Fatalf("RegisterCustomer(%s): %v", phone, err)
		}

		result, err := eng.Lookup(ctx, "biz_1", referrer.Key)
		if err != nil {
			t.Fatalf("Lookup after %d referrals: %v", i+1, err)
		}
		if result.RewardDue != want {
			t.Errorf("RewardDue after %d referrals = %v, want %v", i+1, result.RewardDue, want)
		}
	}
}

func TestRecentTransactionsCapped(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	acct, err := eng.CreateIdentity(ctx, "biz_1")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	for i := range 15 {
		if _, _, err := eng.EarnPoints(ctx, "biz_1", acct.Key, decimal.NewFromInt(int64(i+1))); err != nil {
			t.Fatalf("EarnPoints #%d: %v", i, err)
		}
	}

	stats, err := eng.Stats(ctx, "biz_1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats.RecentTransactions) != loyalty.RecentTransactionsLimit {
		t.Errorf("RecentTransactions = %d, want %d",
			len(stats.RecentTransactions), loyalty.RecentTransactionsLimit)
	}
}

func TestTopReferrersLimit(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	referrer, _, err := eng.RegisterCustomer(ctx, "biz_1", "5550000001", "", "")
	if err != nil {
		t.Fatalf("RegisterCustomer: %v", err)
	}
	for i := range 3 {
		phone := fmt.Sprintf("55500001%02d", i)
		if _, _, err := eng.RegisterCustomer(ctx, "biz_1", phone, referrer.Key, ""); err != nil {
			t.Fatalf("RegisterCustomer(%s): %v", phone, err)
		}
	}

	top, err := eng.TopReferrers(ctx, "biz_1", 1)
	if err != nil {
		t.Fatalf("TopReferrers: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("len = %d, want 1", len(top))
	}
	if top[0].Key != referrer.Key || top[0].ReferralCount != 3 {
		t.Errorf("top = %s (%d), want %s (3)", top[0].Key, top[0].ReferralCount, referrer.Key)
	}
}
