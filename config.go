package swissknife

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a Config from a YAML file. Fields left unset fall back
// to the defaults applied by NewClient.
//
// Example:
//
//	endpoint: https://api.swissknife.example
//	strategy: redirect
//	sign_in_route: /auth/sign-in
//	provider:
//	  domain: https://auth.example.com
//	  client_id: swissknife-dashboard
//	  scopes: [openid, profile]
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("swissknife: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("swissknife: parse config: %w", err)
	}
	if cfg.Strategy != "" {
		switch cfg.Strategy {
		case StrategyLocal, StrategyRedirect, StrategyManaged:
		default:
			return Config{}, fmt.Errorf("swissknife: unknown strategy %q", cfg.Strategy)
		}
	}
	return cfg, nil
}

// UnmarshalYAML implements custom unmarshaling so duration fields accept
// Go duration strings ("10s", "1m30s").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		Endpoint            string         `yaml:"endpoint"`
		Strategy            Strategy       `yaml:"strategy"`
		SignInRoute         string         `yaml:"sign_in_route"`
		DefaultLandingRoute string         `yaml:"default_landing_route"`
		PermissionBypass    bool           `yaml:"permission_bypass"`
		HTTPTimeout         string         `yaml:"http_timeout"`
		TokenLeeway         string         `yaml:"token_leeway"`
		Provider            ProviderConfig `yaml:"provider"`
	}
	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Endpoint = raw.Endpoint
	c.Strategy = raw.Strategy
	c.SignInRoute = raw.SignInRoute
	c.DefaultLandingRoute = raw.DefaultLandingRoute
	c.PermissionBypass = raw.PermissionBypass
	c.Provider = raw.Provider

	if raw.HTTPTimeout != "" {
		d, err := time.ParseDuration(raw.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("http_timeout: %w", err)
		}
		c.HTTPTimeout = d
	}
	if raw.TokenLeeway != "" {
		d, err := time.ParseDuration(raw.TokenLeeway)
		if err != nil {
			return fmt.Errorf("token_leeway: %w", err)
		}
		c.TokenLeeway = d
	}
	return nil
}
