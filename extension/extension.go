// Package extension provides the Forge extension adapter for Loyalty.
//
// It implements the forge.Extension interface to integrate the loyalty
// engine into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.loyalty" or "loyalty" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "loyalty"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Merchant loyalty points and referral ledger engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the loyalty engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *loyalty.Engine
	store      store.Store
	engineOpts []loyalty.Option
}

// New creates a new Loyalty Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying loyalty engine.
// This is nil until Register is called.
func (e *Extension) Engine() *loyalty.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the loyalty engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := loyalty.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*loyalty.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("loyalty: extension not initialized")
	}

	// DisableMigrate only skips the schema migration (via WithAutoMigrate);
	// the engine and its workers always start.
	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("loyalty: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs loyalty.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []loyalty.Option {
	opts := make([]loyalty.Option, 0, len(e.engineOpts)+4)

	// Apply config-derived options.
	if e.config.DisableMigrate {
		opts = append(opts, loyalty.WithAutoMigrate(false))
	}
	if e.config.IdentityRetries > 0 {
		opts = append(opts, loyalty.WithIdentityRetries(e.config.IdentityRetries))
	}
	if e.config.ReferralRetryBuffer > 0 {
		opts = append(opts, loyalty.WithReferralRetryBuffer(e.config.ReferralRetryBuffer))
	}
	if e.config.ReferralRetryDelay > 0 {
		opts = append(opts, loyalty.WithReferralRetryDelay(e.config.ReferralRetryDelay))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("loyalty: configuration is required but not found in config files; " +
				"ensure 'extensions.loyalty' or 'loyalty' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("loyalty: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("identity_retries", e.config.IdentityRetries),
		forge.F("referral_retry_buffer", e.config.ReferralRetryBuffer),
		forge.F("referral_retry_delay", e.config.ReferralRetryDelay),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.loyalty" first (namespaced pattern).
	if cm.IsSet("extensions.loyalty") {
		if err := cm.Bind("extensions.loyalty", &cfg); err == nil {
			e.Logger().Debug("loyalty: loaded config from file",
				forge.F("key", "extensions.loyalty"),
			)
			return cfg, true
		}
		e.Logger().Warn("loyalty: failed to bind extensions.loyalty config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "loyalty" key.
	if cm.IsSet("loyalty") {
		if err := cm.Bind("loyalty", &cfg); err == nil {
			e.Logger().Debug("loyalty: loaded config from file",
				forge.F("key", "loyalty"),
			)
			return cfg, true
		}
		e.Logger().Warn("loyalty: failed to bind loyalty config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.IdentityRetries == 0 {
		cfg.IdentityRetries = defaults.IdentityRetries
	}
	if cfg.ReferralRetryBuffer == 0 {
		cfg.ReferralRetryBuffer = defaults.ReferralRetryBuffer
	}
	if cfg.ReferralRetryDelay == 0 {
		cfg.ReferralRetryDelay = defaults.ReferralRetryDelay
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.IdentityRetries == 0 && programmaticConfig.IdentityRetries != 0 {
		yamlConfig.IdentityRetries = programmaticConfig.IdentityRetries
	}
	if yamlConfig.ReferralRetryBuffer == 0 && programmaticConfig.ReferralRetryBuffer != 0 {
		yamlConfig.ReferralRetryBuffer = programmaticConfig.ReferralRetryBuffer
	}
	if yamlConfig.ReferralRetryDelay == 0 && programmaticConfig.ReferralRetryDelay != 0 {
		yamlConfig.ReferralRetryDelay = programmaticConfig.ReferralRetryDelay
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
