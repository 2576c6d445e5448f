// Package env reads process environment variables with fallbacks, for
// the few toggles that live outside the envconfig-managed Config.
package env

import "os"

// Get returns the variable's value, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
