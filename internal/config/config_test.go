package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "LOG_LEVEL", "PLAID_CLIENT_ID", "PLAID_SECRET", "PLAID_ENV", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) *CLIOverrides {
	t.Helper()
	return &CLIOverrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Plaid.Environment != EnvironmentSandbox {
		t.Fatalf("expected sandbox environment, got %s", cfg.Plaid.Environment)
	}
	if cfg.Plaid.ClientUserID != "budgr-123" || cfg.Plaid.ClientName != "Budgr" || cfg.Plaid.Language != "en" {
		t.Fatalf("unexpected link identity: %+v", cfg.Plaid)
	}
	if cfg.Plaid.InstitutionsCount != 10 || cfg.Plaid.InstitutionsOffset != 0 {
		t.Fatalf("unexpected institutions paging: %d/%d", cfg.Plaid.InstitutionsCount, cfg.Plaid.InstitutionsOffset)
	}
	if cfg.Plaid.HasCredentials() {
		t.Fatalf("expected no credentials by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("PLAID_CLIENT_ID", "client-id")
	t.Setenv("PLAID_SECRET", "secret")
	t.Setenv("PLAID_ENV", "Production")

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.Plaid.Environment != EnvironmentProduction {
		t.Fatalf("expected production environment, got %s", cfg.Plaid.Environment)
	}
	if !cfg.Plaid.HasCredentials() {
		t.Fatalf("expected credentials to be loaded")
	}
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAID_ENV", "development")

	_, err := Load(noEnvFile(t))
	if !errors.Is(err, ErrUnknownEnvironment) {
		t.Fatalf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestLoadEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAID_SECRET", "from-process")
	envFile := writeFile(t, ".env", "PLAID_CLIENT_ID=from-file\nPLAID_SECRET=from-file\nPLAID_ENV=production\n")

	cfg, err := Load(&CLIOverrides{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Plaid.ClientID != "from-file" {
		t.Fatalf("expected client id from env file, got %q", cfg.Plaid.ClientID)
	}
	if cfg.Plaid.Secret != "from-process" {
		t.Fatalf("expected process secret to win, got %q", cfg.Plaid.Secret)
	}
	if cfg.Plaid.Environment != EnvironmentProduction {
		t.Fatalf("expected production from env file, got %s", cfg.Plaid.Environment)
	}
	if _, set := os.LookupEnv("PLAID_CLIENT_ID"); set && os.Getenv("PLAID_CLIENT_ID") != "" {
		t.Fatalf("env file must not leak into the process environment")
	}
}

func TestLoadEnvFileRejectsUnknownEnvironment(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "PLAID_ENV=staging\n")

	if _, err := Load(&CLIOverrides{EnvFile: envFile}); !errors.Is(err, ErrUnknownEnvironment) {
		t.Fatalf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAID_CLIENT_ID", "env-client")
	path := writeFile(t, "config.yaml", `
port: "7070"
write_timeout: 20s
enable_metrics: false
rate_limit:
  rps: 0
  burst: 0
plaid:
  client_id: yaml-client
  secret: yaml-secret
  environment: production
  timeout: 5s
  client_name: Budgr Staging
  products: [transactions, auth]
  country_codes: [US, CA]
  institutions:
    count: 25
    offset: 50
`)

	overrides := noEnvFile(t)
	overrides.ConfigFile = path
	cfg, err := Load(overrides)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7070" || cfg.WriteTimeout != 20*time.Second {
		t.Fatalf("unexpected server settings: %s %s", cfg.Port, cfg.WriteTimeout)
	}
	if cfg.EnableMetrics {
		t.Fatalf("expected metrics disabled")
	}
	if cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != 0 {
		t.Fatalf("expected rate limit disabled, got %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.Plaid.ClientID != "env-client" {
		t.Fatalf("expected environment variable to override YAML, got %q", cfg.Plaid.ClientID)
	}
	if cfg.Plaid.Secret != "yaml-secret" || cfg.Plaid.Environment != EnvironmentProduction {
		t.Fatalf("unexpected plaid settings: %+v", cfg.Plaid)
	}
	if cfg.Plaid.Timeout != 5*time.Second || cfg.Plaid.ClientName != "Budgr Staging" {
		t.Fatalf("unexpected plaid settings: %+v", cfg.Plaid)
	}
	if len(cfg.Plaid.Products) != 2 || len(cfg.Plaid.CountryCodes) != 2 {
		t.Fatalf("unexpected products/countries: %v %v", cfg.Plaid.Products, cfg.Plaid.CountryCodes)
	}
	if cfg.Plaid.InstitutionsCount != 25 || cfg.Plaid.InstitutionsOffset != 50 {
		t.Fatalf("unexpected institutions paging: %d/%d", cfg.Plaid.InstitutionsCount, cfg.Plaid.InstitutionsOffset)
	}
}

func TestLoadYAMLRejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	cases := map[string]string{
		"bad duration":    "write_timeout: soon\n",
		"bad environment": "plaid:\n  environment: development\n",
		"zero count":      "plaid:\n  institutions:\n    count: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			overrides := noEnvFile(t)
			overrides.ConfigFile = writeFile(t, "config.yaml", body)
			if _, err := Load(overrides); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadCLIOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAID_ENV", "production")

	port := "6060"
	env := "sandbox"
	rps := 2.0
	burst := 4
	overrides := noEnvFile(t)
	overrides.Port = &port
	overrides.PlaidEnv = &env
	overrides.RateLimitRPS = &rps
	overrides.RateLimitBurst = &burst

	cfg, err := Load(overrides)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != port || cfg.Plaid.Environment != EnvironmentSandbox {
		t.Fatalf("expected CLI overrides to win, got %s %s", cfg.Port, cfg.Plaid.Environment)
	}
	if cfg.RateLimitRPS != rps || cfg.RateLimitBurst != burst {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	bad := "qa"
	overrides.PlaidEnv = &bad
	if _, err := Load(overrides); !errors.Is(err, ErrUnknownEnvironment) {
		t.Fatalf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		raw     string
		want    Environment
		wantErr bool
	}{
		{raw: "", want: EnvironmentSandbox},
		{raw: "sandbox", want: EnvironmentSandbox},
		{raw: " SANDBOX ", want: EnvironmentSandbox},
		{raw: "production", want: EnvironmentProduction},
		{raw: "Production", want: EnvironmentProduction},
		{raw: "development", wantErr: true},
		{raw: "prod", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseEnvironment(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownEnvironment) {
				t.Fatalf("ParseEnvironment(%q): expected ErrUnknownEnvironment, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseEnvironment(%q) returned error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseEnvironment(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
