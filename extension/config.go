package extension

import "time"

// Config holds the Loyalty extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.loyalty" or "loyalty" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for loyalty routes (default: "/loyalty").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// IdentityRetries is the number of loyalty-code generation attempts
	// before giving up on creating a new identity (default: 5).
	IdentityRetries int `json:"identity_retries" mapstructure:"identity_retries" yaml:"identity_retries"`

	// ReferralRetryBuffer is the capacity of the referral credit retry
	// queue (default: 1024).
	ReferralRetryBuffer int `json:"referral_retry_buffer" mapstructure:"referral_retry_buffer" yaml:"referral_retry_buffer"`

	// ReferralRetryDelay is how long the engine waits between referral
	// credit retry sweeps (default: 2s).
	ReferralRetryDelay time.Duration `json:"referral_retry_delay" mapstructure:"referral_retry_delay" yaml:"referral_retry_delay"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:            "/loyalty",
		IdentityRetries:     5,
		ReferralRetryBuffer: 1024,
		ReferralRetryDelay:  2 * time.Second,
	}
}
