// Package testutil holds small shared test helpers.
package testutil

import "testing"

// Given, When, and Then wrap subtests so scenario-style tests read as
// behavior descriptions without a BDD framework dependency.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
