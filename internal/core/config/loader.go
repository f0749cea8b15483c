package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/commune/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	chainDefaults(&c.Chain)
	for i := range c.OtherChains {
		chainDefaults(&c.OtherChains[i])
	}

	if c.Session.InitialChain == 0 {
		c.Session.InitialChain = c.Chain.ChainID
	}
	if c.Session.SendTimeout == 0 {
		c.Session.SendTimeout = 10 * time.Second
	}
	if c.Watcher.PollInterval == 0 {
		c.Watcher.PollInterval = 100 * time.Millisecond
	}
	if c.Watcher.Timeout == 0 {
		c.Watcher.Timeout = 30 * time.Second
	}
	if c.Reconciler.DisplayDelay == 0 {
		c.Reconciler.DisplayDelay = 1500 * time.Millisecond
	}
	if c.Reconciler.RefetchWindow == 0 {
		c.Reconciler.RefetchWindow = 30 * 24 * time.Hour
	}
	if c.Reconciler.RegistryTTL == 0 {
		c.Reconciler.RegistryTTL = max(2*time.Minute, 2*c.ActionLifetime())
	}
	if c.Reconciler.StuckAfter == 0 {
		c.Reconciler.StuckAfter = 2 * c.Watcher.Timeout
	}
	if c.Preferences.Path == "" {
		c.Preferences.Path = ".commune/prefs.db"
	}
}

// ActionLifetime is the longest an action holds its target: the send, the
// confirmation wait and the display delay.
func (c *AppConfig) ActionLifetime() time.Duration {
	return c.Session.SendTimeout + c.Watcher.Timeout + c.Reconciler.DisplayDelay
}

func chainDefaults(c *ChainConfig) {
	if c.Name == "" {
		c.Name = string(domain.ChainIDToName[c.ChainID])
	}
	if c.ExplorerURL == "" {
		c.ExplorerURL = domain.ChainIDToExplorer[c.ChainID]
	}
	for i := range c.Providers {
		if c.Providers[i].Name == "" {
			c.Providers[i].Name = fmt.Sprintf("%s-%d", c.Name, i)
		}
		if c.Providers[i].Timeout == 0 {
			c.Providers[i].Timeout = 10 * time.Second
		}
	}
}

// Validate reports every problem found in the configuration.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chain.ChainID == 0 {
		errs = append(errs, errors.New("chain.id is required"))
	}
	if !common.IsHexAddress(c.Chain.CommuneContract) {
		errs = append(errs, fmt.Errorf("chain.commune_contract %q is not an address", c.Chain.CommuneContract))
	}
	for _, field := range []struct{ name, value string }{
		{"chain.token_contract", c.Chain.TokenContract},
		{"chain.collateral_manager", c.Chain.CollateralManager},
	} {
		if field.value != "" && !common.IsHexAddress(field.value) {
			errs = append(errs, fmt.Errorf("%s %q is not an address", field.name, field.value))
		}
	}

	seen := make(map[domain.ChainID]bool)
	for _, ch := range c.AllChains() {
		if seen[ch.ChainID] {
			errs = append(errs, fmt.Errorf("chain %d configured twice", ch.ChainID))
		}
		seen[ch.ChainID] = true
		if len(ch.Providers) == 0 {
			errs = append(errs, fmt.Errorf("chain %d has no providers", ch.ChainID))
		}
		for _, p := range ch.Providers {
			if p.URL == "" {
				errs = append(errs, fmt.Errorf("chain %d provider %s has no url", ch.ChainID, p.Name))
			}
		}
	}
	if !seen[c.Session.InitialChain] {
		errs = append(errs, fmt.Errorf("session.initial_chain %d is not configured", c.Session.InitialChain))
	}
	if c.Session.Sponsor && c.Chain.SponsorURL == "" {
		errs = append(errs, errors.New("session.sponsor requires chain.sponsor_url"))
	}
	if c.Watcher.PollInterval >= c.Watcher.Timeout {
		errs = append(errs, errors.New("watcher.poll_interval must be shorter than watcher.timeout"))
	}
	if c.Reconciler.RegistryTTL <= c.ActionLifetime() {
		errs = append(errs, fmt.Errorf("reconciler.registry_ttl %s must exceed send_timeout + watcher.timeout + display_delay (%s)",
			c.Reconciler.RegistryTTL, c.ActionLifetime()))
	}
	return errors.Join(errs...)
}
