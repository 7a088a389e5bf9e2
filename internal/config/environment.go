package config

import (
	"errors"
	"fmt"
	"strings"
)

// Environment selects the Plaid deployment the service talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// ErrUnknownEnvironment is returned when PLAID_ENV names an unsupported deployment.
var ErrUnknownEnvironment = errors.New("plaid environment must be one of: sandbox, production")

// ParseEnvironment maps a raw value onto an Environment. Matching is
// case-insensitive and ignores surrounding whitespace; an empty value selects
// the sandbox.
func ParseEnvironment(raw string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(EnvironmentSandbox):
		return EnvironmentSandbox, nil
	case string(EnvironmentProduction):
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrUnknownEnvironment, raw)
	}
}

func (e Environment) String() string { return string(e) }
