package extension

import (
	"time"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/plugin"
	"github.com/xraph/loyalty/store"
)

// Option configures the Loyalty Forge extension.
type Option func(*Extension)

// WithStore sets the store for the loyalty engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a loyalty.Option through to the underlying engine.
func WithEngineOption(opt loyalty.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a loyalty plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, loyalty.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for loyalty routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithIdentityRetries sets the number of loyalty-code generation attempts.
func WithIdentityRetries(n int) Option {
	return func(e *Extension) { e.config.IdentityRetries = n }
}

// WithReferralRetryBuffer sets the capacity of the referral retry queue.
func WithReferralRetryBuffer(n int) Option {
	return func(e *Extension) { e.config.ReferralRetryBuffer = n }
}

// WithReferralRetryDelay sets the interval between referral retry sweeps.
func WithReferralRetryDelay(d time.Duration) Option {
	return func(e *Extension) { e.config.ReferralRetryDelay = d }
}
