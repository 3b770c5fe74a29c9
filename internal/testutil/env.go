// Package testutil provides utilities for testing rcchain in isolation.
package testutil

import (
	"testing"
)

// SetupTestEnv clears the variables that select the active configuration
// environment, so tests never pick up the developer's BABEL_ENV or NODE_ENV.
// t.Setenv restores the previous values when the test ends.
func SetupTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("BABEL_ENV", "")
	t.Setenv("NODE_ENV", "")
}
