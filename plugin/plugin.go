// Package plugin provides an extensible plugin system for the loyalty engine.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Identity and registration hooks
// ──────────────────────────────────────────────────

// OnIdentityCreated is called when a fresh loyalty code is allocated.
type OnIdentityCreated interface {
	Plugin
	OnIdentityCreated(ctx context.Context, businessID, key string) error
}

// OnCustomerRegistered is called when a new account is registered.
// Repeat registrations (isNew=false) do not fire this hook.
type OnCustomerRegistered interface {
	Plugin
	OnCustomerRegistered(ctx context.Context, acct interface{}) error
}

// OnReferralRecorded is called when a referrer's count is incremented.
type OnReferralRecorded interface {
	Plugin
	OnReferralRecorded(ctx context.Context, businessID, referrerKey string, newCount int64) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnPointsEarned is called after a successful earn.
type OnPointsEarned interface {
	Plugin
	OnPointsEarned(ctx context.Context, businessID, key string, pointsAdded, newBalance int64) error
}

// OnPointsRedeemed is called after a successful redemption.
type OnPointsRedeemed interface {
	Plugin
	OnPointsRedeemed(ctx context.Context, businessID, key string, pointsUsed, newBalance int64) error
}

// OnRedemptionDenied is called when a redemption is rejected for
// insufficient balance.
type OnRedemptionDenied interface {
	Plugin
	OnRedemptionDenied(ctx context.Context, businessID, key string, requested, balance int64) error
}

// OnRewardGranted is called when a monetary referral reward is recorded.
type OnRewardGranted interface {
	Plugin
	OnRewardGranted(ctx context.Context, businessID, key string, reward interface{}) error
}
