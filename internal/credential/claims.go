package credential

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client reads out of a session token. The signature
// is not verified here; the server remains the authority.
type Claims struct {
	Subject   string
	Name      string
	Role      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// ParseClaims decodes the payload of a JWT session token.
func ParseClaims(token string) (*Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}

	c := &Claims{
		Subject: tc.Subject,
		Name:    tc.Name,
		Role:    tc.Role,
	}
	if c.Subject == "" {
		c.Subject = tc.UserID
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Expired reports whether the token carries an expiry that lies before now.
// Tokens without an exp claim never expire client-side.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
