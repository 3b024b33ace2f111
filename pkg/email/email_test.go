package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"gatepass/pkg/testutil"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "maria.lopez@example.com", Normalize("  Maria.Lopez@Example.COM "))
	assert.Equal(t, "", Normalize("   "))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("a@b.co"))
	assert.True(t, Valid("maria.lopez@example.com"))
	assert.False(t, Valid("no-at-sign"))
	assert.False(t, Valid("@example.com"))
	assert.False(t, Valid("user@"))
	assert.False(t, Valid("user@nodot"))
}

func TestMask(t *testing.T) {
	t.Run("never returns the original address", func(t *testing.T) {
		original := "maria.lopez@example.com"
		masked := Mask(original)
		assert.NotEqual(t, original, masked)
		assert.NotContains(t, masked, "maria.lopez")
	})

	t.Run("keeps only first and last runes of local and first domain label", func(t *testing.T) {
		assert.Equal(t, "m*********z@e*****e.com", Mask("maria.lopez@example.com"))
	})

	t.Run("fully stars short segments", func(t *testing.T) {
		masked := Mask("ab@cd.io")
		assert.Equal(t, "**@**.io", masked)
		assert.False(t, strings.Contains(masked, "ab"))
	})

	t.Run("handles missing at sign without panic", func(t *testing.T) {
		assert.Equal(t, "n*********n", Mask("not-an-addr"))
	})
}

func TestMaskedLookupScenario(t *testing.T) {
	testutil.Given(t, "an address imported from an operator upload", func(t *testing.T) {
		stored := Normalize("  Maria.Lopez@Example.COM ")

		testutil.When(t, "a caller claims only a distributor id", func(t *testing.T) {
			masked := Mask(stored)

			testutil.Then(t, "the masked form reveals neither local part nor domain", func(t *testing.T) {
				assert.Equal(t, "m*********z@e*****e.com", masked)
				assert.NotContains(t, masked, "maria")
				assert.NotContains(t, masked, "example")
			})
		})
	})
}

func TestDeriveNameFromEmail(t *testing.T) {
	first, last := DeriveNameFromEmail("maria.lopez@example.com")
	assert.Equal(t, "Maria", first)
	assert.Equal(t, "Lopez", last)

	first, last = DeriveNameFromEmail("solo@example.com")
	assert.Equal(t, "Solo", first)
	assert.Equal(t, "Guest", last)
}
