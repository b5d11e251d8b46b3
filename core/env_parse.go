package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env looks up a variable; an empty result means unset.
type Env func(key string) string

// OSEnv reads the process environment.
func OSEnv() Env {
	return os.Getenv
}

// MapEnv serves lookups from m. Tests use it instead of t.Setenv.
func MapEnv(m map[string]string) Env {
	return func(key string) string { return m[key] }
}

// String returns the value or def.
func (e Env) String(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return def
}

// Int parses an integer, falling back to def when unset or malformed.
func (e Env) Int(key string, def int) int {
	if v := strings.TrimSpace(e(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool accepts true/1/yes/on and false/0/no/off in any case.
func (e Env) Bool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(e(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// Seconds reads a whole number of seconds.
func (e Env) Seconds(key string, defSeconds int) time.Duration {
	return time.Duration(e.Int(key, defSeconds)) * time.Second
}
