// Package rest exposes the loyalty engine over HTTP using Fiber.
//
// Route shapes mirror the widget and dashboard clients: loyalty routes for
// the customer-facing widget, dashboard routes for the merchant console,
// and a read-only business profile route.
package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/account"
	"github.com/xraph/loyalty/identity"
	"github.com/xraph/loyalty/types"
)

// Handler serves the loyalty HTTP API.
type Handler struct {
	engine *loyalty.Engine
	logger *slog.Logger
}

// New creates a Handler around the engine.
func New(engine *loyalty.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes mounts all loyalty routes on the given router.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	api := app.Group("/api")

	ly := api.Group("/loyalty")
	ly.Post("/create", h.CreateIdentity)
	ly.Post("/check", h.CheckPoints)
	ly.Post("/earn", h.EarnPoints)
	ly.Post("/redeem", h.RedeemPoints)
	ly.Post("/register", h.RegisterCustomer)
	ly.Post("/reward", h.GrantReward)
	ly.Get("/transactions/:businessId/:phone", h.Transactions)

	dash := api.Group("/dashboard")
	dash.Get("/stats/:businessId", h.Stats)
	dash.Post("/lookup", h.Lookup)

	api.Get("/business/:businessId", h.Business)
}

// ──────────────────────────────────────────────────
// Loyalty routes (widget)
// ──────────────────────────────────────────────────

type createIdentityRequest struct {
	BusinessID string `json:"businessId"`
}

// CreateIdentity handles POST /api/loyalty/create.
func (h *Handler) CreateIdentity(c *fiber.Ctx) error {
	var req createIdentityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" {
		return badRequest(c, "Missing businessId")
	}

	acct, err := h.engine.CreateIdentity(c.Context(), req.BusinessID)
	if err != nil {
		return h.fail(c, "create identity", err)
	}

	return c.JSON(fiber.Map{"loyaltyId": acct.Key})
}

type checkPointsRequest struct {
	BusinessID string `json:"businessId"`
	LoyaltyID  string `json:"loyaltyId"`
}

// CheckPoints handles POST /api/loyalty/check.
func (h *Handler) CheckPoints(c *fiber.Ctx) error {
	var req checkPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" || req.LoyaltyID == "" {
		return badRequest(c, "Missing fields")
	}

	points, err := h.engine.CheckPoints(c.Context(), req.BusinessID, req.LoyaltyID)
	if err != nil {
		return h.fail(c, "check points", err)
	}

	return c.JSON(fiber.Map{"points": points})
}

type earnPointsRequest struct {
	BusinessID  string `json:"businessId"`
	LoyaltyID   string `json:"loyaltyId"`
	AmountSpent string `json:"amountSpent"`
}

// EarnPoints handles POST /api/loyalty/earn.
func (h *Handler) EarnPoints(c *fiber.Ctx) error {
	var req earnPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" || req.LoyaltyID == "" || req.AmountSpent == "" {
		return badRequest(c, "Missing fields")
	}

	amount, err := decimal.NewFromString(req.AmountSpent)
	if err != nil {
		return badRequest(c, "Invalid amountSpent")
	}

	added, _, err := h.engine.EarnPoints(c.Context(), req.BusinessID, req.LoyaltyID, amount)
	if err != nil {
		return h.fail(c, "earn points", err)
	}

	return c.JSON(fiber.Map{"success": true, "pointsAdded": added})
}

type redeemPointsRequest struct {
	BusinessID     string `json:"businessId"`
	LoyaltyID      string `json:"loyaltyId"`
	PointsToRedeem int64  `json:"pointsToRedeem"`
}

// RedeemPoints handles POST /api/loyalty/redeem.
func (h *Handler) RedeemPoints(c *fiber.Ctx) error {
	var req redeemPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" || req.LoyaltyID == "" {
		return badRequest(c, "Missing fields")
	}

	remaining, err := h.engine.RedeemPoints(c.Context(), req.BusinessID, req.LoyaltyID, req.PointsToRedeem)
	if err != nil {
		return h.fail(c, "redeem points", err)
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"pointsRedeemed":  req.PointsToRedeem,
		"remainingPoints": remaining,
	})
}

type registerCustomerRequest struct {
	BusinessID string `json:"businessId"`
	Phone      string `json:"phone"`
	ReferredBy string `json:"referredBy"`
	Source     string `json:"source"`
}

// RegisterCustomer handles POST /api/loyalty/register.
func (h *Handler) RegisterCustomer(c *fiber.Ctx) error {
	var req registerCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" || req.Phone == "" {
		return badRequest(c, "Missing fields")
	}

	acct, isNew, err := h.engine.RegisterCustomer(
		c.Context(), req.BusinessID, req.Phone, req.ReferredBy, account.Source(req.Source),
	)
	if err != nil {
		return h.fail(c, "register customer", err)
	}

	return c.JSON(fiber.Map{
		"phone":         acct.Key,
		"referralCount": acct.ReferralCount,
		"isNew":         isNew,
		"wasReferred":   acct.HasReferrer(),
	})
}

type grantRewardRequest struct {
	BusinessID   string `json:"businessId"`
	Phone        string `json:"phone"`
	RewardAmount int64  `json:"rewardAmount"`
	Note         string `json:"note"`
}

// GrantReward handles POST /api/loyalty/reward.
// RewardAmount is in whole dollars to match the dashboard client.
func (h *Handler) GrantReward(c *fiber.Ctx) error {
	var req grantRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" || req.Phone == "" || req.RewardAmount == 0 {
		return badRequest(c, "Missing required fields")
	}

	key, err := identity.NormalizePhone(req.Phone)
	if err != nil {
		return badRequest(c, "Invalid phone number")
	}

	reward := types.USD(req.RewardAmount * 100)
	rec, err := h.engine.GrantReward(c.Context(), req.BusinessID, key, reward, req.Note)
	if err != nil {
		return h.fail(c, "grant reward", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Rewarded " + rec.RewardAmount.String() + " for referrals!",
	})
}

// Transactions handles GET /api/loyalty/transactions/:businessId/:phone.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	businessID := c.Params("businessId")

	key, err := identity.NormalizePhone(c.Params("phone"))
	if err != nil {
		return badRequest(c, "Invalid phone number")
	}

	records, err := h.engine.Transactions(c.Context(), businessID, key)
	if err != nil {
		return h.fail(c, "list transactions", err)
	}

	return c.JSON(fiber.Map{"transactions": records})
}

// ──────────────────────────────────────────────────
// Dashboard routes (merchant console)
// ──────────────────────────────────────────────────

// Stats handles GET /api/dashboard/stats/:businessId.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats(c.Context(), c.Params("businessId"))
	if err != nil {
		return h.fail(c, "dashboard stats", err)
	}
	return c.JSON(stats)
}

type lookupRequest struct {
	BusinessID string `json:"businessId"`
	LoyaltyID  string `json:"loyaltyId"`
}

// Lookup handles POST /api/dashboard/lookup.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	var req lookupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.BusinessID == "" || req.LoyaltyID == "" {
		return badRequest(c, "Missing businessId or loyaltyId")
	}

	result, err := h.engine.Lookup(c.Context(), req.BusinessID, req.LoyaltyID)
	if err != nil {
		return h.fail(c, "customer lookup", err)
	}

	return c.JSON(fiber.Map{
		"customer":     result.Account,
		"transactions": result.Transactions,
		"referrals":    result.Referrals,
		"rewardDue":    result.RewardDue,
	})
}

// ──────────────────────────────────────────────────
// Business routes
// ──────────────────────────────────────────────────

// Business handles GET /api/business/:businessId.
func (h *Handler) Business(c *fiber.Ctx) error {
	biz, err := h.engine.Business(c.Context(), c.Params("businessId"))
	if err != nil {
		return h.fail(c, "get business", err)
	}
	return c.JSON(biz)
}

// ──────────────────────────────────────────────────
// Error mapping
// ──────────────────────────────────────────────────

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// fail maps engine errors onto HTTP statuses. Input and rule rejections are
// the caller's fault, missing entities are 404, anything else is a store
// fault.
func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	// The referrer comes from the request body, so an unknown referrer is
	// the caller's mistake, not a missing resource.
	case errors.Is(err, loyalty.ErrReferrerNotFound):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case loyalty.IsInvalidInput(err) || loyalty.IsRuleRejection(err):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case loyalty.IsNotFound(err):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Error("loyalty api error", "op", op, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
