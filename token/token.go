// Package token provides local, non-network credential inspection.
//
// The SwissKnife backend is the signing authority: it verifies signatures
// on every authenticated call and answers 401 for anything it rejects.
// Client-side, a credential is only ever decoded — never verified — to
// read its subject, expiry, and permission claims, mirroring what the
// dashboard needs to settle a session without a round trip.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// Validator decodes bearer credentials and checks their expiry against
// the local clock.
type Validator struct {
	leeway time.Duration
	now    func() time.Time
}

// Option configures the Validator.
type Option func(*Validator)

// WithLeeway sets a clock-skew tolerance for expiry checks: a credential
// stays usable until exp + leeway. Default: 0 (a token with exp <= now
// is invalid).
func WithLeeway(d time.Duration) Option {
	return func(v *Validator) { v.leeway = d }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a credential validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Decode extracts claims from the credential payload without verifying
// the signature. Malformed input yields a *swissknife.DecodeError, which
// callers treat as "no session" rather than a fatal failure.
func (v *Validator) Decode(tokenString string) (*swissknife.Claims, error) {
	parser := jwt.NewParser()

	parsed, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, &swissknife.DecodeError{Err: err}
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &swissknife.DecodeError{Err: fmt.Errorf("unexpected claims type %T", parsed.Claims)}
	}

	return mapToClaims(mapClaims), nil
}

// IsValid reports whether the credential decodes, carries an expiry
// claim, and has not expired. Expiry uses seconds-since-epoch compared
// against the local clock at call time.
func (v *Validator) IsValid(tokenString string) bool {
	claims, err := v.Decode(tokenString)
	if err != nil {
		return false
	}
	if claims.ExpiresAt.IsZero() {
		return false
	}
	return v.now().Before(claims.ExpiresAt.Add(v.leeway))
}

// mapToClaims converts jwt.MapClaims to swissknife.Claims.
func mapToClaims(m jwt.MapClaims) *swissknife.Claims {
	c := &swissknife.Claims{
		Extra: make(map[string]any),
	}

	if v, ok := m["sub"].(string); ok {
		c.Subject = v
	}
	if v, ok := m["name"].(string); ok {
		c.DisplayName = v
	}
	if v, ok := m["email"].(string); ok {
		c.Email = v
	}
	if v, ok := m["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(v), 0)
	}
	if v, ok := m["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(v), 0)
	}
	if perms, ok := m["permissions"].([]interface{}); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				c.Permissions = append(c.Permissions, swissknife.Permission(s))
			}
		}
	}

	standard := map[string]bool{
		"sub": true, "name": true, "email": true, "permissions": true,
		"exp": true, "iat": true, "iss": true, "aud": true, "nbf": true, "jti": true,
	}
	for k, v := range m {
		if !standard[k] {
			c.Extra[k] = v
		}
	}

	return c
}
