package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/harborlight-org/tokend/internal/core"
)

type Config struct {
	Server            ServerConfig     `yaml:"server"`
	Issuer            IssuerConfig     `yaml:"issuer"`
	IdentityProviders []ProviderConfig `yaml:"identity_providers"`
	Directory         DirectoryConfig  `yaml:"directory"`
	Revocation        RevocationConfig `yaml:"revocation"`
	Audit             AuditConfig      `yaml:"audit"`
	Policies          []core.Policy    `yaml:"policies"`
	Pantry            PantryConfig     `yaml:"pantry"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// IssuerConfig configures token minting and verification.
type IssuerConfig struct {
	// URL is the "iss" claim and the expected issuer on verification.
	URL string `yaml:"url"`

	// Audience is the "aud" claim and the expected audience on verification.
	Audience string `yaml:"audience"`

	// KeyFile is a PEM-encoded RSA private key. When empty the server
	// runs verify-only (issuance fails with NotImplemented) and JWKSURL
	// must be set instead.
	KeyFile string `yaml:"key_file"`
	KeyID   string `yaml:"key_id"`

	// JWKSURL points at a remote .well-known/jwks.json for verify-only
	// deployments.
	JWKSURL string `yaml:"jwks_url"`

	// SessionTTL is the lifetime of admin session tokens.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

func (c *IssuerConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("issuer.url is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("issuer.audience is required")
	}
	if c.KeyFile == "" && c.JWKSURL == "" {
		return fmt.Errorf("one of issuer.key_file or issuer.jwks_url is required")
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	return nil
}

// ProviderConfig holds configuration for an upstream identity provider.
type ProviderConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "oidc", "static"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

type DirectoryConfig struct {
	Type string `yaml:"type"` // "firestore", "static"

	// firestore
	ProjectID       string `yaml:"project_id"`
	Collection      string `yaml:"collection"`
	CredentialsFile string `yaml:"credentials_file"`

	// static (dev/tests): subject -> record
	Records map[string]core.OrgRecord `yaml:"records"`
}

func (c *DirectoryConfig) Validate() error {
	switch c.Type {
	case "firestore":
		if c.ProjectID == "" {
			return fmt.Errorf("directory.project_id is required for firestore")
		}
	case "static":
	case "":
		return fmt.Errorf("directory.type is required")
	default:
		return fmt.Errorf("unknown directory type %q", c.Type)
	}
	return nil
}

type RevocationConfig struct {
	Type string `yaml:"type"` // "redis", "memory"

	// redis
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c *RevocationConfig) Validate() error {
	switch c.Type {
	case "redis":
		if c.Addr == "" {
			return fmt.Errorf("revocation.addr is required for redis")
		}
	case "memory", "":
	default:
		return fmt.Errorf("unknown revocation type %q", c.Type)
	}
	return nil
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

type PantryConfig struct {
	// Timezone is the location used for check-in day windows.
	Timezone string `yaml:"timezone"`
}

// Location resolves the configured timezone, defaulting to local time.
func (c *PantryConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading pantry timezone: %w", err)
	}
	return loc, nil
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if err := c.Issuer.Validate(); err != nil {
		return err
	}

	seenProviders := make(map[string]struct{})
	for idx, p := range c.IdentityProviders {
		if p.Name == "" {
			return fmt.Errorf("identity provider at index %d has empty name", idx)
		}
		if _, exists := seenProviders[p.Name]; exists {
			return fmt.Errorf("identity provider name '%s' is not unique", p.Name)
		}
		seenProviders[p.Name] = struct{}{}
	}

	if err := c.Directory.Validate(); err != nil {
		return err
	}
	if err := c.Revocation.Validate(); err != nil {
		return err
	}

	seenPolicies := make(map[string]struct{})
	for idx := range c.Policies {
		p := &c.Policies[idx]
		if p.Name == "" {
			return fmt.Errorf("policy at index %d has empty name", idx)
		}
		if _, exists := seenPolicies[p.Name]; exists {
			return fmt.Errorf("policy name '%s' is not unique", p.Name)
		}
		seenPolicies[p.Name] = struct{}{}
		if err := p.Compile(); err != nil {
			return fmt.Errorf("compiling policy '%s': %w", p.Name, err)
		}
	}

	return nil
}

// PolicyByName returns a copy of the named policy. Handlers narrow the
// copy per-request (e.g. pinning OrgID) without racing other requests.
func (c *Config) PolicyByName(name string) (core.Policy, bool) {
	for _, p := range c.Policies {
		if p.Name == name {
			return p, true
		}
	}
	return core.Policy{}, false
}
