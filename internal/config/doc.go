// Package config loads runtime configuration from multiple sources (.env file,
// YAML file, environment variables, CLI flags) with precedence: CLI flags >
// Environment variables > YAML config > .env file > Defaults. It exposes
// strongly typed settings, including the Plaid credentials and environment,
// to the rest of the application.
package config
