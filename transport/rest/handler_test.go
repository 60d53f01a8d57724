package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/identity"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/transport/rest"
	"github.com/xraph/loyalty/types"
)

func newTestApp(t *testing.T) (*fiber.App, *loyalty.Engine) {
	t.Helper()

	st := memory.New()
	if err := st.PutBusiness(context.Background(), &business.Business{
		ID:                 "biz_1",
		Name:               "Corner Cafe",
		PointsPerDollar:    decimal.NewFromInt(2),
		ReferralsForReward: 3,
		ReferralReward:     types.USD(500),
	}); err != nil {
		t.Fatalf("PutBusiness: %v", err)
	}

	eng := loyalty.New(st)
	app := fiber.New()
	rest.New(eng, nil).RegisterRoutes(app)
	return app, eng
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestCreateIdentityRoute(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/loyalty/create", fiber.Map{"businessId": "biz_1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	code, _ := body["loyaltyId"].(string)
	if !identity.IsLoyaltyCode(code) {
		t.Fatalf("loyaltyId = %q, want 6-digit code", code)
	}
}

func TestCreateIdentityMissingBusiness(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/loyalty/create", fiber.Map{"businessId": "biz_missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, _ = postJSON(t, app, "/api/loyalty/create", fiber.Map{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEarnRoute(t *testing.T) {
	app, eng := newTestApp(t)

	acct, err := eng.CreateIdentity(context.Background(), "biz_1")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	resp, body := postJSON(t, app, "/api/loyalty/earn", fiber.Map{
		"businessId":  "biz_1",
		"loyaltyId":   acct.Key,
		"amountSpent": "12.50",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if added, _ := body["pointsAdded"].(float64); added != 25 {
		t.Fatalf("pointsAdded = %v, want 25", body["pointsAdded"])
	}
}

func TestRedeemRouteInsufficient(t *testing.T) {
	app, eng := newTestApp(t)

	acct, err := eng.CreateIdentity(context.Background(), "biz_1")
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	resp, _ := postJSON(t, app, "/api/loyalty/redeem", fiber.Map{
		"businessId":     "biz_1",
		"loyaltyId":      acct.Key,
		"pointsToRedeem": 15,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRegisterRoute(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/loyalty/register", fiber.Map{
		"businessId": "biz_1",
		"phone":      "(555) 123-4567",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if phone, _ := body["phone"].(string); phone != "5551234567" {
		t.Fatalf("phone = %q, want normalized 5551234567", phone)
	}
	if isNew, _ := body["isNew"].(bool); !isNew {
		t.Fatal("isNew = false on first registration")
	}

	// Registering again is idempotent.
	resp, body = postJSON(t, app, "/api/loyalty/register", fiber.Map{
		"businessId": "biz_1",
		"phone":      "5551234567",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat status = %d, want 200", resp.StatusCode)
	}
	if isNew, _ := body["isNew"].(bool); isNew {
		t.Fatal("isNew = true on repeat registration")
	}
}

func TestRegisterRouteUnknownReferrer(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/loyalty/register", fiber.Map{
		"businessId": "biz_1",
		"phone":      "5551234567",
		"referredBy": "5559990000",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); msg != loyalty.ErrReferrerNotFound.Error() {
		t.Fatalf("error = %q, want %q", msg, loyalty.ErrReferrerNotFound.Error())
	}
}

func TestStatsRoute(t *testing.T) {
	app, eng := newTestApp(t)

	if _, _, err := eng.RegisterCustomer(context.Background(), "biz_1", "5551230001", "", ""); err != nil {
		t.Fatalf("RegisterCustomer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats/biz_1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats loyalty.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.CustomerCount != 1 {
		t.Fatalf("CustomerCount = %d, want 1", stats.CustomerCount)
	}
}
