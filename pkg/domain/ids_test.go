package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gatepass/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseEventID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEventID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRegistrationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseEventID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, EventID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	eventID := EventID(uuid.New())
	registrationID := RegistrationID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ EventID = registrationID   // compile error
	// var _ RegistrationID = eventID   // compile error

	assert.NotEqual(t, uuid.UUID(eventID), uuid.UUID(registrationID))
}

func TestRegistrationMode(t *testing.T) {
	t.Run("parses supported modes", func(t *testing.T) {
		for _, raw := range []string{"qualified_verified", "open_verified", "open_anonymous"} {
			m, err := ParseRegistrationMode(raw)
			require.NoError(t, err)
			assert.True(t, m.IsValid())
		}
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		_, err := ParseRegistrationMode("invite_only")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("verification and duplicate rules per mode", func(t *testing.T) {
		assert.True(t, ModeQualifiedVerified.RequiresVerification())
		assert.True(t, ModeOpenVerified.RequiresVerification())
		assert.False(t, ModeOpenAnonymous.RequiresVerification())

		assert.True(t, ModeOpenAnonymous.AllowsDuplicates())
		assert.False(t, ModeQualifiedVerified.AllowsDuplicates())
		assert.False(t, ModeOpenVerified.AllowsDuplicates())
	})
}
