package config

import (
	"fmt"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// NormalizeEnvironment lowercases the name; empty means development.
func NormalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return EnvDevelopment
	}
	return env
}

// ValidateEnvironment rejects names outside the known set, so a typo such as
// "prod" cannot skip the production checks.
func ValidateEnvironment(env string) error {
	switch env {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
		return nil
	}
	return fmt.Errorf("unknown environment %q (want %s, %s, %s or %s)",
		env, EnvDevelopment, EnvTest, EnvStaging, EnvProduction)
}

// IsProductionLike reports whether env enforces production configuration.
func IsProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
