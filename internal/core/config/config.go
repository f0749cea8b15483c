package config

import (
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	redisclient "github.com/vietddude/commune/internal/infra/redis"
	"github.com/vietddude/commune/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Chain       ChainConfig        `yaml:"chain"`
	OtherChains []ChainConfig      `yaml:"other_chains"`
	Session     SessionConfig      `yaml:"session"`
	Watcher     WatcherConfig      `yaml:"watcher"`
	Reconciler  ReconcilerConfig   `yaml:"reconciler"`
	Redis       redisclient.Config `yaml:"redis"`
	Database    postgres.Config    `yaml:"database"`
	Preferences PreferencesConfig  `yaml:"preferences"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for a chain the session can use. The top-level
// chain is the one every action must be sent on.
type ChainConfig struct {
	ChainID           domain.ChainID   `yaml:"id"`
	Name              string           `yaml:"name"`
	ExplorerURL       string           `yaml:"explorer_url"`
	CommuneContract   string           `yaml:"commune_contract"`
	TokenContract     string           `yaml:"token_contract"`
	CollateralManager string           `yaml:"collateral_manager"`
	SponsorURL        string           `yaml:"sponsor_url"`
	Providers         []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig configures the local-key wallet session.
type SessionConfig struct {
	PrivateKey   string         `yaml:"private_key"` // hex, usually ${COMMUNE_PRIVATE_KEY}
	InitialChain domain.ChainID `yaml:"initial_chain"`
	SendTimeout  time.Duration  `yaml:"send_timeout"`
	Sponsor      bool           `yaml:"sponsor"`
}

// WatcherConfig controls receipt polling.
type WatcherConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ReconcilerConfig controls the action coordinator.
type ReconcilerConfig struct {
	DisplayDelay  time.Duration `yaml:"display_delay"`
	RefetchWindow time.Duration `yaml:"refetch_window"`
	RegistryTTL   time.Duration `yaml:"registry_ttl"`
	StuckAfter    time.Duration `yaml:"stuck_after"`
}

// PreferencesConfig locates the local preferences database.
type PreferencesConfig struct {
	Path string `yaml:"path"`
}

// AllChains returns the required chain followed by the others.
func (c *AppConfig) AllChains() []ChainConfig {
	return append([]ChainConfig{c.Chain}, c.OtherChains...)
}
