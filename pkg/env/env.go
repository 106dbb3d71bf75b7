// Package env reads ad hoc environment variables that live outside the
// POS-prefixed config, such as the logger's LOG_FORMAT switch.
package env

import "os"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
