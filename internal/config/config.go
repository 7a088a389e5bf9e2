package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultEnvFile        = ".env"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50

	defaultPlaidTimeout      = 30 * time.Second
	defaultClientName        = "Budgr"
	defaultClientUserID      = "budgr-123"
	defaultLanguage          = "en"
	defaultInstitutionsCount = 10
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > .env file > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	EnableMetrics        bool
	RateLimitRPS         float64
	RateLimitBurst       int
	Plaid                Plaid
}

// Plaid holds the credentials, environment and fixed request identity used
// for every call to the Plaid API.
type Plaid struct {
	ClientID    string
	Secret      string
	Environment Environment
	// BaseURL overrides the host derived from Environment. Empty in normal
	// deployments.
	BaseURL string
	Timeout time.Duration

	ClientName   string
	ClientUserID string
	Language     string
	Products     []string
	CountryCodes []string

	InstitutionsCount  int
	InstitutionsOffset int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	EnableMetrics        *bool         `yaml:"enable_metrics"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Plaid                yamlPlaid     `yaml:"plaid"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlPlaid struct {
	ClientID     string           `yaml:"client_id"`
	Secret       string           `yaml:"secret"`
	Environment  string           `yaml:"environment"`
	BaseURL      string           `yaml:"base_url"`
	Timeout      string           `yaml:"timeout"`
	ClientName   string           `yaml:"client_name"`
	ClientUserID string           `yaml:"client_user_id"`
	Language     string           `yaml:"language"`
	Products     []string         `yaml:"products"`
	CountryCodes []string         `yaml:"country_codes"`
	Institutions yamlInstitutions `yaml:"institutions"`
}

type yamlInstitutions struct {
	Count  *int `yaml:"count"`
	Offset *int `yaml:"offset"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	EnvFile        string
	Port           *string
	PlaidEnv       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > .env file > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	envFile := defaultEnvFile
	if overrides != nil && overrides.EnvFile != "" {
		envFile = overrides.EnvFile
	}
	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	if err := applyEnvConfig(&cfg, func(key string) string { return dotenv[key] }); err != nil {
		return Config{}, fmt.Errorf("env file %s: %w", envFile, err)
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Process environment wins over files.
	if err := applyEnvConfig(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             "info",
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         45 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		EnableMetrics:        true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Plaid: Plaid{
			Environment:        EnvironmentSandbox,
			Timeout:            defaultPlaidTimeout,
			ClientName:         defaultClientName,
			ClientUserID:       defaultClientUserID,
			Language:           defaultLanguage,
			Products:           []string{"transactions"},
			CountryCodes:       []string{"US"},
			InstitutionsCount:  defaultInstitutionsCount,
			InstitutionsOffset: 0,
		},
	}
}

// readEnvFile parses a dotenv file without touching the process environment.
// A missing file is not an error.
func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return values, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout},
		{yamlCfg.Plaid.Timeout, &cfg.Plaid.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", d.raw, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.EnableMetrics != nil {
		cfg.EnableMetrics = *yamlCfg.EnableMetrics
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	p := yamlCfg.Plaid
	if p.ClientID != "" {
		cfg.Plaid.ClientID = p.ClientID
	}
	if p.Secret != "" {
		cfg.Plaid.Secret = p.Secret
	}
	if p.Environment != "" {
		env, err := ParseEnvironment(p.Environment)
		if err != nil {
			return err
		}
		cfg.Plaid.Environment = env
	}
	if p.BaseURL != "" {
		cfg.Plaid.BaseURL = p.BaseURL
	}
	if p.ClientName != "" {
		cfg.Plaid.ClientName = p.ClientName
	}
	if p.ClientUserID != "" {
		cfg.Plaid.ClientUserID = p.ClientUserID
	}
	if p.Language != "" {
		cfg.Plaid.Language = p.Language
	}
	if len(p.Products) > 0 {
		cfg.Plaid.Products = p.Products
	}
	if len(p.CountryCodes) > 0 {
		cfg.Plaid.CountryCodes = p.CountryCodes
	}
	if p.Institutions.Count != nil {
		cfg.Plaid.InstitutionsCount = *p.Institutions.Count
	}
	if p.Institutions.Offset != nil {
		cfg.Plaid.InstitutionsOffset = *p.Institutions.Offset
	}

	return nil
}

// applyEnvConfig applies variables resolved through getenv. It is used for
// both the .env file and the process environment. PLAID_ENV is the only
// variable whose bad value is fatal; malformed numeric values are ignored.
func applyEnvConfig(cfg *Config, getenv func(string) string) error {
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if level := strings.TrimSpace(getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if id := strings.TrimSpace(getenv("PLAID_CLIENT_ID")); id != "" {
		cfg.Plaid.ClientID = id
	}

	if secret := strings.TrimSpace(getenv("PLAID_SECRET")); secret != "" {
		cfg.Plaid.Secret = secret
	}

	if raw := strings.TrimSpace(getenv("PLAID_ENV")); raw != "" {
		env, err := ParseEnvironment(raw)
		if err != nil {
			return fmt.Errorf("PLAID_ENV: %w", err)
		}
		cfg.Plaid.Environment = env
	}

	if rps := strings.TrimSpace(getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.PlaidEnv != nil && *overrides.PlaidEnv != "" {
		env, err := ParseEnvironment(*overrides.PlaidEnv)
		if err != nil {
			return fmt.Errorf("parse plaid environment: %w", err)
		}
		cfg.Plaid.Environment = env
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.Plaid.Timeout <= 0 {
		return fmt.Errorf("plaid timeout must be positive")
	}
	if cfg.Plaid.InstitutionsCount <= 0 {
		return fmt.Errorf("plaid institutions count must be positive")
	}
	if cfg.Plaid.InstitutionsOffset < 0 {
		return fmt.Errorf("plaid institutions offset must be >= 0")
	}
	if len(cfg.Plaid.Products) == 0 || len(cfg.Plaid.CountryCodes) == 0 {
		return fmt.Errorf("plaid products and country codes cannot be empty")
	}
	return nil
}

// HasCredentials reports whether both the client id and secret are set.
func (p Plaid) HasCredentials() bool {
	return p.ClientID != "" && p.Secret != ""
}
