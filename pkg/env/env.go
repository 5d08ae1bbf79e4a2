// Package env reads process environment variables with fallbacks, for the
// few knobs that live outside the envconfig-managed configuration.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
