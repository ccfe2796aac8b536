// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	auth "github.com/grantlab/auth-go"
)

// Config holds everything the auth service needs to run.
type Config struct {
	// Identity provider
	UserPoolID   string `env:"COGNITO_USER_POOL_ID"`
	ClientID     string `env:"COGNITO_CLIENT_ID"`
	ClientSecret string `env:"COGNITO_CLIENT_SECRET"`

	// Profile storage
	ProfileTable string `env:"PROFILE_TABLE"`
	Region       string `env:"AWS_REGION"`

	// Server
	ListenAddr     string        `env:"LISTEN_ADDR" envDefault:":8080"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"false"`
	KeyRefresh     time.Duration `env:"SIGNING_KEY_REFRESH" envDefault:"1h"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("auth/config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing required value, not just the first.
func (c *Config) Validate() error {
	var errs []error
	for _, req := range []struct {
		value, name string
	}{
		{c.UserPoolID, "COGNITO_USER_POOL_ID"},
		{c.ClientID, "COGNITO_CLIENT_ID"},
		{c.ClientSecret, "COGNITO_CLIENT_SECRET"},
		{c.ProfileTable, "PROFILE_TABLE"},
		{c.Region, "AWS_REGION"},
	} {
		if req.value == "" {
			errs = append(errs, &auth.ConfigError{Missing: req.name})
		}
	}
	return errors.Join(errs...)
}

// JWKSEndpoint derives the signing-key set URL for the configured pool.
func (c *Config) JWKSEndpoint() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", c.Region, c.UserPoolID)
}
