// Package secrets generates and verifies the random material used by the
// verification flows: opaque tokens and short numeric codes.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	dErrors "gatepass/pkg/domain-errors"
)

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string suitable for redirect tokens and session tokens.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NumericCode returns a zero-padded numeric code of the given length, drawn
// from crypto/rand. Leading zeros are valid: "042133" is a six digit code.
func NumericCode(length int) (string, error) {
	if length <= 0 || length > 12 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "code length out of range")
	}
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("could not generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// Hash creates a bcrypt hash of the provided secret.
// bcrypt salts internally, so two hashes of the same code differ.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "secret mismatch")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}
