// Package audithook bridges loyalty engine lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/loyalty/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnIdentityCreated    = (*Extension)(nil)
	_ plugin.OnCustomerRegistered = (*Extension)(nil)
	_ plugin.OnReferralRecorded   = (*Extension)(nil)
	_ plugin.OnPointsEarned       = (*Extension)(nil)
	_ plugin.OnPointsRedeemed     = (*Extension)(nil)
	_ plugin.OnRedemptionDenied   = (*Extension)(nil)
	_ plugin.OnRewardGranted      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly. Callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges loyalty lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Enrollment lifecycle hooks
// ──────────────────────────────────────────────────

// OnIdentityCreated implements plugin.OnIdentityCreated.
func (e *Extension) OnIdentityCreated(ctx context.Context, businessID, key string) error {
	return e.record(ctx, ActionIdentityCreated, SeverityInfo, OutcomeSuccess,
		ResourceIdentity, key, CategoryEnrollment, nil,
		"business_id", businessID,
		"customer_key", key,
	)
}

// OnCustomerRegistered implements plugin.OnCustomerRegistered.
func (e *Extension) OnCustomerRegistered(ctx context.Context, _ interface{}) error {
	// Would extract account details from the interface
	return e.record(ctx, ActionCustomerRegistered, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, "", CategoryEnrollment, nil,
		"event", "customer_registered",
	)
}

// ──────────────────────────────────────────────────
// Referral lifecycle hooks
// ──────────────────────────────────────────────────

// OnReferralRecorded implements plugin.OnReferralRecorded.
func (e *Extension) OnReferralRecorded(ctx context.Context, businessID, referrerKey string, newCount int64) error {
	return e.record(ctx, ActionReferralRecorded, SeverityInfo, OutcomeSuccess,
		ResourceReferral, referrerKey, CategoryReferral, nil,
		"business_id", businessID,
		"referrer_key", referrerKey,
		"referral_count", newCount,
	)
}

// ──────────────────────────────────────────────────
// Point lifecycle hooks
// ──────────────────────────────────────────────────

// OnPointsEarned implements plugin.OnPointsEarned.
func (e *Extension) OnPointsEarned(ctx context.Context, businessID, key string, pointsAdded, newBalance int64) error {
	return e.record(ctx, ActionPointsEarned, SeverityInfo, OutcomeSuccess,
		ResourcePoints, key, CategoryLedger, nil,
		"business_id", businessID,
		"customer_key", key,
		"points_added", pointsAdded,
		"new_balance", newBalance,
	)
}

// OnPointsRedeemed implements plugin.OnPointsRedeemed.
func (e *Extension) OnPointsRedeemed(ctx context.Context, businessID, key string, pointsUsed, newBalance int64) error {
	return e.record(ctx, ActionPointsRedeemed, SeverityInfo, OutcomeSuccess,
		ResourcePoints, key, CategoryLedger, nil,
		"business_id", businessID,
		"customer_key", key,
		"points_used", pointsUsed,
		"new_balance", newBalance,
	)
}

// OnRedemptionDenied implements plugin.OnRedemptionDenied.
func (e *Extension) OnRedemptionDenied(ctx context.Context, businessID, key string, requested, balance int64) error {
	return e.record(ctx, ActionRedemptionDenied, SeverityWarning, OutcomeFailure,
		ResourcePoints, key, CategoryLedger, nil,
		"business_id", businessID,
		"customer_key", key,
		"requested", requested,
		"balance", balance,
	)
}

// OnRewardGranted implements plugin.OnRewardGranted.
func (e *Extension) OnRewardGranted(ctx context.Context, businessID, key string, _ interface{}) error {
	return e.record(ctx, ActionRewardGranted, SeverityInfo, OutcomeSuccess,
		ResourceReward, key, CategoryReward, nil,
		"business_id", businessID,
		"customer_key", key,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
