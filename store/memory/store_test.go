package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/id"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/transaction"
	"github.com/xraph/loyalty/types"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()

	s := memory.New()
	if err := s.PutBusiness(context.Background(), &business.Business{
		ID:              "biz_1",
		Name:            "Test Business",
		PointsPerDollar: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("PutBusiness: %v", err)
	}
	return s
}

func newAccount(businessID, key string) *account.CustomerAccount {
	return &account.CustomerAccount{
		Entity:     types.NewEntityAt(time.Now().UTC()),
		ID:         id.NewAccountID(),
		BusinessID: businessID,
		Key:        key,
		Source:     account.SourceDirect,
	}
}

func earnRecord(businessID, key string, points int64, at time.Time) *transaction.Record {
	return &transaction.Record{
		ID:            id.NewTransactionID(),
		BusinessID:    businessID,
		Key:           key,
		Type:          transaction.TypeEarn,
		PointsChanged: points,
		CreatedAt:     at,
	}
}

func TestBusinessRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	b, err := s.GetBusiness(ctx, "biz_1")
	if err != nil {
		t.Fatalf("GetBusiness: %v", err)
	}
	if b.Name != "Test Business" {
		t.Errorf("Name = %q, want %q", b.Name, "Test Business")
	}

	_, err = s.GetBusiness(ctx, "biz_missing")
	if !errors.Is(err, loyalty.ErrBusinessNotFound) {
		t.Errorf("error = %v, want ErrBusinessNotFound", err)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("biz_1", "123456")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	err := s.CreateAccount(ctx, newAccount("biz_1", "123456"))
	if !errors.Is(err, loyalty.ErrDuplicateKey) {
		t.Errorf("error = %v, want ErrDuplicateKey", err)
	}

	// Same key under a different business is fine.
	if err := s.CreateAccount(ctx, newAccount("biz_2", "123456")); err != nil {
		t.Errorf("CreateAccount other business: %v", err)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetAccount(context.Background(), "biz_1", "000000")
	if !errors.Is(err, loyalty.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestApplyDelta(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("biz_1", "123456")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	now := time.Now().UTC()
	balance, err := s.ApplyDelta(ctx, store.Delta{
		BusinessID: "biz_1",
		Key:        "123456",
		Record:     earnRecord("biz_1", "123456", 10, now),
	})
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	// Debit past zero is rejected and leaves the balance untouched.
	balance, err = s.ApplyDelta(ctx, store.Delta{
		BusinessID: "biz_1",
		Key:        "123456",
		Record:     earnRecord("biz_1", "123456", -15, now),
	})
	if !errors.Is(err, loyalty.ErrWouldUnderflow) {
		t.Fatalf("error = %v, want ErrWouldUnderflow", err)
	}
	if balance != 10 {
		t.Errorf("balance after rejection = %d, want 10", balance)
	}

	// Rejected delta must not leave a record behind.
	records, err := s.ListTransactions(ctx, "biz_1", "123456", transaction.ListOpts{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestApplyDeltaConcurrent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("biz_1", "123456")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyDelta(ctx, store.Delta{
				BusinessID: "biz_1",
				Key:        "123456",
				Record:     earnRecord("biz_1", "123456", 1, time.Now().UTC()),
			})
			if err != nil {
				t.Errorf("ApplyDelta: %v", err)
			}
		}()
	}
	wg.Wait()

	acct, err := s.GetAccount(ctx, "biz_1", "123456")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Points != n {
		t.Errorf("Points = %d, want %d (lost updates)", acct.Points, n)
	}

	records, err := s.ListTransactions(ctx, "biz_1", "123456", transaction.ListOpts{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != n {
		t.Errorf("records = %d, want %d", len(records), n)
	}
}

func TestIncrementReferralCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("biz_1", "5551234567")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrementReferralCount(ctx, "biz_1", "5551234567")
		if err != nil {
			t.Fatalf("IncrementReferralCount: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	_, err := s.IncrementReferralCount(ctx, "biz_1", "0000000000")
	if !errors.Is(err, loyalty.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestListAccountsOrdering(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		key       string
		referrals int64
		createdAt time.Time
	}{
		{"alpha", 2, base},
		{"bravo", 5, base.Add(time.Minute)},
		{"charlie", 5, base.Add(2 * time.Minute)},
		{"delta", 0, base.Add(3 * time.Minute)},
	}
	for _, sd := range seed {
		a := newAccount("biz_1", sd.key)
		a.Entity = types.NewEntityAt(sd.createdAt)
		a.ReferralCount = sd.referrals
		if err := s.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount(%s): %v", sd.key, err)
		}
	}

	t.Run("referral leaderboard", func(t *testing.T) {
		got, err := s.ListAccounts(ctx, "biz_1", account.ListOpts{
			HasReferrals: true,
			OrderBy:      account.OrderReferralCount,
		})
		if err != nil {
			t.Fatalf("ListAccounts: %v", err)
		}

		// Count desc, earlier createdAt breaks ties.
		want := []string{"bravo", "charlie", "alpha"}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i, key := range want {
			if got[i].Key != key {
				t.Errorf("position %d = %q, want %q", i, got[i].Key, key)
			}
		}
	})

	t.Run("recency", func(t *testing.T) {
		got, err := s.ListAccounts(ctx, "biz_1", account.ListOpts{
			OrderBy: account.OrderRecency,
			Limit:   2,
		})
		if err != nil {
			t.Fatalf("ListAccounts: %v", err)
		}
		if len(got) != 2 || got[0].Key != "delta" || got[1].Key != "charlie" {
			t.Errorf("got %v, want [delta charlie]", keysOf(got))
		}
	})

	t.Run("referred by filter", func(t *testing.T) {
		ref := newAccount("biz_1", "echo")
		ref.ReferredBy = "alpha"
		if err := s.CreateAccount(ctx, ref); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}

		got, err := s.ListAccounts(ctx, "biz_1", account.ListOpts{ReferredBy: "alpha"})
		if err != nil {
			t.Fatalf("ListAccounts: %v", err)
		}
		if len(got) != 1 || got[0].Key != "echo" {
			t.Errorf("got %v, want [echo]", keysOf(got))
		}
	})
}

func TestPointTotals(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("biz_1", "123456")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	now := time.Now().UTC()
	for _, delta := range []int64{20, 5, -10} {
		if _, err := s.ApplyDelta(ctx, store.Delta{
			BusinessID: "biz_1",
			Key:        "123456",
			Record:     earnRecord("biz_1", "123456", delta, now),
		}); err != nil {
			t.Fatalf("ApplyDelta(%d): %v", delta, err)
		}
	}

	awarded, redeemed, err := s.PointTotals(ctx, "biz_1")
	if err != nil {
		t.Fatalf("PointTotals: %v", err)
	}
	if awarded != 25 {
		t.Errorf("awarded = %d, want 25", awarded)
	}
	if redeemed != 10 {
		t.Errorf("redeemed = %d, want 10", redeemed)
	}
}

func TestCountAccountsBySource(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sources := []account.Source{
		account.SourceDirect,
		account.SourceDirect,
		account.SourceReferral,
		account.SourceSocial,
	}
	for i, src := range sources {
		a := newAccount("biz_1", "key"+string(rune('a'+i)))
		a.Source = src
		if err := s.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}

	counts, err := s.CountAccountsBySource(ctx, "biz_1")
	if err != nil {
		t.Fatalf("CountAccountsBySource: %v", err)
	}
	if counts[account.SourceDirect] != 2 {
		t.Errorf("direct = %d, want 2", counts[account.SourceDirect])
	}
	if counts[account.SourceReferral] != 1 {
		t.Errorf("referral = %d, want 1", counts[account.SourceReferral])
	}
	if counts[account.SourceSocial] != 1 {
		t.Errorf("social = %d, want 1", counts[account.SourceSocial])
	}
}

func TestListTransactionsOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("biz_1", "123456")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		if _, err := s.ApplyDelta(ctx, store.Delta{
			BusinessID: "biz_1",
			Key:        "123456",
			Record:     earnRecord("biz_1", "123456", 1, base.Add(time.Duration(i)*time.Minute)),
		}); err != nil {
			t.Fatalf("ApplyDelta: %v", err)
		}
	}

	records, err := s.ListTransactions(ctx, "biz_1", "123456", transaction.ListOpts{Limit: 3})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Errorf("records not in recency order at %d", i)
		}
	}
}

func TestClose(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, loyalty.ErrStoreClosed) {
		t.Errorf("Ping after close = %v, want ErrStoreClosed", err)
	}
}

func keysOf(accounts []*account.CustomerAccount) []string {
	keys := make([]string, len(accounts))
	for i, a := range accounts {
		keys[i] = a.Key
	}
	return keys
}
