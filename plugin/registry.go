package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onIdentityCreated    []OnIdentityCreated
	onCustomerRegistered []OnCustomerRegistered
	onReferralRecorded   []OnReferralRecorded
	onPointsEarned       []OnPointsEarned
	onPointsRedeemed     []OnPointsRedeemed
	onRedemptionDenied   []OnRedemptionDenied
	onRewardGranted      []OnRewardGranted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnIdentityCreated); ok {
		r.onIdentityCreated = append(r.onIdentityCreated, v)
	}
	if v, ok := p.(OnCustomerRegistered); ok {
		r.onCustomerRegistered = append(r.onCustomerRegistered, v)
	}
	if v, ok := p.(OnReferralRecorded); ok {
		r.onReferralRecorded = append(r.onReferralRecorded, v)
	}
	if v, ok := p.(OnPointsEarned); ok {
		r.onPointsEarned = append(r.onPointsEarned, v)
	}
	if v, ok := p.(OnPointsRedeemed); ok {
		r.onPointsRedeemed = append(r.onPointsRedeemed, v)
	}
	if v, ok := p.(OnRedemptionDenied); ok {
		r.onRedemptionDenied = append(r.onRedemptionDenied, v)
	}
	if v, ok := p.(OnRewardGranted); ok {
		r.onRewardGranted = append(r.onRewardGranted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnIdentityCreated)(nil)).Elem(), "OnIdentityCreated")
	checkInterface(reflect.TypeOf((*OnCustomerRegistered)(nil)).Elem(), "OnCustomerRegistered")
	checkInterface(reflect.TypeOf((*OnReferralRecorded)(nil)).Elem(), "OnReferralRecorded")
	checkInterface(reflect.TypeOf((*OnPointsEarned)(nil)).Elem(), "OnPointsEarned")
	checkInterface(reflect.TypeOf((*OnPointsRedeemed)(nil)).Elem(), "OnPointsRedeemed")
	checkInterface(reflect.TypeOf((*OnRedemptionDenied)(nil)).Elem(), "OnRedemptionDenied")
	checkInterface(reflect.TypeOf((*OnRewardGranted)(nil)).Elem(), "OnRewardGranted")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitIdentityCreated emits an identity created event.
func (r *Registry) EmitIdentityCreated(ctx context.Context, businessID, key string) {
	r.mu.RLock()
	plugins := r.onIdentityCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnIdentityCreated(ctx, businessID, key)
		}); err != nil {
			r.logger.Warn("plugin OnIdentityCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCustomerRegistered emits a customer registered event.
func (r *Registry) EmitCustomerRegistered(ctx context.Context, acct interface{}) {
	r.mu.RLock()
	plugins := r.onCustomerRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCustomerRegistered(ctx, acct)
		}); err != nil {
			r.logger.Warn("plugin OnCustomerRegistered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReferralRecorded emits a referral recorded event.
func (r *Registry) EmitReferralRecorded(ctx context.Context, businessID, referrerKey string, newCount int64) {
	r.mu.RLock()
	plugins := r.onReferralRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReferralRecorded(ctx, businessID, referrerKey, newCount)
		}); err != nil {
			r.logger.Warn("plugin OnReferralRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsEarned emits a points earned event.
func (r *Registry) EmitPointsEarned(ctx context.Context, businessID, key string, pointsAdded, newBalance int64) {
	r.mu.RLock()
	plugins := r.onPointsEarned
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsEarned(ctx, businessID, key, pointsAdded, newBalance)
		}); err != nil {
			r.logger.Warn("plugin OnPointsEarned failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsRedeemed emits a points redeemed event.
func (r *Registry) EmitPointsRedeemed(ctx context.Context, businessID, key string, pointsUsed, newBalance int64) {
	r.mu.RLock()
	plugins := r.onPointsRedeemed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsRedeemed(ctx, businessID, key, pointsUsed, newBalance)
		}); err != nil {
			r.logger.Warn("plugin OnPointsRedeemed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionDenied emits a redemption denied event.
func (r *Registry) EmitRedemptionDenied(ctx context.Context, businessID, key string, requested, balance int64) {
	r.mu.RLock()
	plugins := r.onRedemptionDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionDenied(ctx, businessID, key, requested, balance)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRewardGranted emits a reward granted event.
func (r *Registry) EmitRewardGranted(ctx context.Context, businessID, key string, reward interface{}) {
	r.mu.RLock()
	plugins := r.onRewardGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRewardGranted(ctx, businessID, key, reward)
		}); err != nil {
			r.logger.Warn("plugin OnRewardGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
