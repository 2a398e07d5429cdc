package env

import (
	"os"
	"strings"

	"github.com/styl-labs/styld/internal/envvar"
)

// Environment identifies the runtime environment of the process.
type Environment string

const (
	// Development is the default environment for local work.
	Development Environment = "development"

	// Production is the environment for deployed instances.
	Production Environment = "production"

	// Test is the environment used by the test suite.
	Test Environment = "test"
)

// FromEnv resolves the environment from STYLD_ENV.
// Unknown or empty values fall back to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.StyldEnv))
}

// Parse converts a raw string into an Environment.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
