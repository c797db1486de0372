// Package config loads winaudit configuration from YAML with environment
// overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all winaudit settings. Every section is optional: with no
// config file the tool runs on defaults and command-line flags alone.
type Config struct {
	Graph    GraphConfig    `yaml:"graph"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	WinRM    WinRMConfig    `yaml:"winrm"`
	Sink     SinkConfig     `yaml:"sink"`
	StateDir string         `yaml:"state_dir"`
}

// GraphConfig holds Microsoft Graph application credentials.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Configured reports whether Graph credentials are present.
func (g GraphConfig) Configured() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != ""
}

// LDAPConfig holds on-prem directory settings.
type LDAPConfig struct {
	URL      string `yaml:"url"`
	BaseDN   string `yaml:"base_dn"`
	BindDN   string `yaml:"bind_dn"`
	Password string `yaml:"password"`
}

// WinRMConfig holds remote execution settings for --target mode.
type WinRMConfig struct {
	Port        int    `yaml:"port"`
	UseSSL      bool   `yaml:"use_ssl"`
	VerifySSL   bool   `yaml:"verify_ssl"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TimeoutSecs int    `yaml:"timeout_seconds"`
	Retries     int    `yaml:"retries"`
}

// SinkConfig holds the optional fleet aggregation target.
type SinkConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() Config {
	return Config{
		WinRM: WinRMConfig{
			Port:        5985,
			UseSSL:      false,
			VerifySSL:   false,
			TimeoutSecs: 300,
			Retries:     2,
		},
		StateDir: ".winaudit",
	}
}

// Load reads configuration from a YAML file with env overrides. An empty
// path yields defaults plus env overrides; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Credentials may come from the environment instead of the file.
	if v := os.Getenv("WINAUDIT_GRAPH_SECRET"); v != "" {
		cfg.Graph.ClientSecret = v
	}
	if v := os.Getenv("WINAUDIT_LDAP_PASSWORD"); v != "" {
		cfg.LDAP.Password = v
	}
	if v := os.Getenv("WINAUDIT_WINRM_PASSWORD"); v != "" {
		cfg.WinRM.Password = v
	}
	if v := os.Getenv("WINAUDIT_SINK_DSN"); v != "" {
		cfg.Sink.PostgresDSN = v
	}
	if v := os.Getenv("WINAUDIT_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}

	cfg.clamp()
	return &cfg, nil
}

// clamp pulls out-of-range settings back to workable values.
func (c *Config) clamp() {
	if c.WinRM.Port <= 0 || c.WinRM.Port > 65535 {
		if c.WinRM.UseSSL {
			c.WinRM.Port = 5986
		} else {
			c.WinRM.Port = 5985
		}
	}
	if c.WinRM.TimeoutSecs < 30 {
		c.WinRM.TimeoutSecs = 30
	}
	if c.WinRM.TimeoutSecs > 3600 {
		c.WinRM.TimeoutSecs = 3600
	}
	if c.WinRM.Retries < 0 {
		c.WinRM.Retries = 0
	}
	if c.WinRM.Retries > 5 {
		c.WinRM.Retries = 5
	}
}

// SnapshotDBPath returns the SQLite snapshot database path.
func (c *Config) SnapshotDBPath() string {
	return filepath.Join(c.StateDir, "snapshots.db")
}

// SigningKeyPath returns the bundle signing key path.
func (c *Config) SigningKeyPath() string {
	return filepath.Join(c.StateDir, "signing.key")
}

// BundleDir returns the directory audit bundles are written under.
func (c *Config) BundleDir() string {
	return filepath.Join(c.StateDir, "bundles")
}
