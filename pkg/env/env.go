// Package env reads process environment variables that sit outside the
// validated FOODSEARCH_* config, such as LOG_FORMAT and PORT.
package env

import "os"

// Get returns the variable's value, or the fallback when unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
