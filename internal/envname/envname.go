// Package envname reads the name of the active configuration environment.
//
// The name comes from BABEL_ENV, then NODE_ENV, and falls back to
// "development" when neither is set. Empty values count as unset.
package envname

import "os"

// Recognized variables, in priority order, and the fallback name.
const (
	PrimaryVar  = "BABEL_ENV"
	FallbackVar = "NODE_ENV"
	Default     = "development"
)

// Vars lists the recognized variables in priority order.
var Vars = []string{PrimaryVar, FallbackVar}

// LookupFunc looks up an environment variable. os.LookupEnv is the default;
// tests inject their own.
type LookupFunc func(key string) (string, bool)

// Current returns the active environment name from the process environment.
func Current() string {
	return FromLookup(os.LookupEnv)
}

// FromLookup returns the active environment name using lookup.
func FromLookup(lookup LookupFunc) string {
	if lookup == nil {
		return Default
	}
	for _, key := range Vars {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
	}
	return Default
}

// MapLookup returns a LookupFunc backed by env.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
