// Package observability provides a metrics extension for the loyalty engine
// that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/loyalty/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnIdentityCreated    = (*MetricsExtension)(nil)
	_ plugin.OnCustomerRegistered = (*MetricsExtension)(nil)
	_ plugin.OnReferralRecorded   = (*MetricsExtension)(nil)
	_ plugin.OnPointsEarned       = (*MetricsExtension)(nil)
	_ plugin.OnPointsRedeemed     = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionDenied   = (*MetricsExtension)(nil)
	_ plugin.OnRewardGranted      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track loyalty metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Identity metrics
	IdentitiesCreated   Counter
	CustomersRegistered Counter
	ReferralsRecorded   Counter

	// Ledger metrics
	PointsEarned      Counter
	PointsRedeemed    Counter
	RedemptionsDenied Counter
	RewardsGranted    Counter
	EarnSize          Histogram
	RedeemSize        Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Identity metrics
		IdentitiesCreated:   factory.Counter("loyalty.identity.created"),
		CustomersRegistered: factory.Counter("loyalty.customer.registered"),
		ReferralsRecorded:   factory.Counter("loyalty.referral.recorded"),

		// Ledger metrics
		PointsEarned:      factory.Counter("loyalty.points.earned"),
		PointsRedeemed:    factory.Counter("loyalty.points.redeemed"),
		RedemptionsDenied: factory.Counter("loyalty.redemption.denied"),
		RewardsGranted:    factory.Counter("loyalty.reward.granted"),
		EarnSize:          factory.Histogram("loyalty.earn.points"),
		RedeemSize:        factory.Histogram("loyalty.redeem.points"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// OnIdentityCreated implements plugin.OnIdentityCreated.
func (m *MetricsExtension) OnIdentityCreated(_ context.Context, _, _ string) error {
	m.IdentitiesCreated.Inc()
	return nil
}

// OnCustomerRegistered implements plugin.OnCustomerRegistered.
func (m *MetricsExtension) OnCustomerRegistered(_ context.Context, _ interface{}) error {
	m.CustomersRegistered.Inc()
	return nil
}

// OnReferralRecorded implements plugin.OnReferralRecorded.
func (m *MetricsExtension) OnReferralRecorded(_ context.Context, _, _ string, _ int64) error {
	m.ReferralsRecorded.Inc()
	return nil
}

// OnPointsEarned implements plugin.OnPointsEarned.
func (m *MetricsExtension) OnPointsEarned(_ context.Context, _, _ string, pointsAdded, _ int64) error {
	m.PointsEarned.Add(float64(pointsAdded))
	m.EarnSize.Observe(float64(pointsAdded))
	return nil
}

// OnPointsRedeemed implements plugin.OnPointsRedeemed.
func (m *MetricsExtension) OnPointsRedeemed(_ context.Context, _, _ string, pointsUsed, _ int64) error {
	m.PointsRedeemed.Add(float64(pointsUsed))
	m.RedeemSize.Observe(float64(pointsUsed))
	return nil
}

// OnRedemptionDenied implements plugin.OnRedemptionDenied.
func (m *MetricsExtension) OnRedemptionDenied(_ context.Context, _, _ string, _, _ int64) error {
	m.RedemptionsDenied.Inc()
	return nil
}

// OnRewardGranted implements plugin.OnRewardGranted.
func (m *MetricsExtension) OnRewardGranted(_ context.Context, _, _ string, _ interface{}) error {
	m.RewardsGranted.Inc()
	return nil
}
