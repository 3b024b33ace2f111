package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericCode(t *testing.T) {
	t.Run("fixed length with leading zeros allowed", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			code, err := NumericCode(6)
			require.NoError(t, err)
			require.Len(t, code, 6)
			for _, r := range code {
				assert.True(t, r >= '0' && r <= '9', "non-digit in code %q", code)
			}
		}
	})

	t.Run("rejects out-of-range length", func(t *testing.T) {
		_, err := NumericCode(0)
		assert.Error(t, err)
		_, err = NumericCode(13)
		assert.Error(t, err)
	})
}

func TestHashVerify(t *testing.T) {
	hash, err := Hash("042133")
	require.NoError(t, err)
	require.NotEqual(t, "042133", hash)

	assert.NoError(t, Verify("042133", hash))
	assert.Error(t, Verify("042134", hash))

	// bcrypt salts internally: same input, different hash.
	hash2, err := Hash("042133")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 40)
}
