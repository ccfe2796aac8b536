package config_test

import (
	"errors"
	"testing"
	"time"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("COGNITO_USER_POOL_ID", "eu-west-1_testpool")
	t.Setenv("COGNITO_CLIENT_ID", "client")
	t.Setenv("COGNITO_CLIENT_SECRET", "secret")
	t.Setenv("PROFILE_TABLE", "profiles")
	t.Setenv("AWS_REGION", "eu-west-1")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UserPoolID != "eu-west-1_testpool" {
		t.Errorf("UserPoolID = %q", cfg.UserPoolID)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr default = %q", cfg.ListenAddr)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled default should be false")
	}
	if cfg.KeyRefresh != time.Hour {
		t.Errorf("KeyRefresh default = %v", cfg.KeyRefresh)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("SIGNING_KEY_REFRESH", "15m")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":9090" || !cfg.MetricsEnabled || cfg.KeyRefresh != 15*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("COGNITO_CLIENT_SECRET", "")
	t.Setenv("PROFILE_TABLE", "")

	_, err := config.Load()
	if err == nil {
		t.Fatal("Load() succeeded with missing values")
	}

	var cfgErr *auth.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	// both missing values are reported
	for _, want := range []string{"COGNITO_CLIENT_SECRET", "PROFILE_TABLE"} {
		if !containsMissing(err, want) {
			t.Errorf("error %v does not report %s", err, want)
		}
	}
}

func containsMissing(err error, name string) bool {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var cfgErr *auth.ConfigError
			if errors.As(e, &cfgErr) && cfgErr.Missing == name {
				return true
			}
		}
		return false
	}
	var cfgErr *auth.ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Missing == name
}

func TestJWKSEndpoint(t *testing.T) {
	cfg := &config.Config{Region: "eu-west-1", UserPoolID: "eu-west-1_testpool"}
	want := "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_testpool/.well-known/jwks.json"
	if got := cfg.JWKSEndpoint(); got != want {
		t.Errorf("JWKSEndpoint() = %q, want %q", got, want)
	}
}
