package flow

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// LinkClaims are the JWT claims of a pre-verified identity link: an outbound
// invitation whose bearer has already proven the address by receiving it.
type LinkClaims struct {
	EventID string `json:"event_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// LinkSigner signs and validates identity links.
type LinkSigner struct {
	signingKey []byte
	ttl        time.Duration
}

// NewLinkSigner creates a signer. A non-positive ttl falls back to 7 days,
// matching the cadence invitations go out on.
func NewLinkSigner(signingKey string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &LinkSigner{signingKey: []byte(signingKey), ttl: ttl}
}

// Sign mints a link token binding an email to an event.
func (s *LinkSigner) Sign(eventID domain.EventID, email string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LinkClaims{
		EventID: eventID.String(),
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "gatepass",
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign link")
	}
	return signed, nil
}

// Validate parses a link token and returns the bound event and email.
func (s *LinkSigner) Validate(tokenString string, eventID domain.EventID) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeTokenExpired, "link has expired")
		}
		return "", dErrors.New(dErrors.CodeInvalidToken, "invalid link")
	}

	claims, ok := parsed.Claims.(*LinkClaims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeInvalidToken, "invalid link")
	}
	if claims.EventID != eventID.String() {
		return "", dErrors.New(dErrors.CodeInvalidToken, "link is for a different event")
	}
	return claims.Email, nil
}
