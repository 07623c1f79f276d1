// Package auth obtains bearer tokens for simulated staging users, either from
// the staging OAuth-simulation endpoint or by fabricating a local fallback
// token when staging is unreachable.
package auth

import "github.com/golang-jwt/jwt/v5"

// Claims encodes the JWT claims embedded into staging access tokens.
//
// This is a DTO matching the auth service's token contract. The harness keeps
// this struct local instead of importing backend modules.
type Claims struct {
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	// LocalTest marks tokens fabricated by the fallback path. Staging never
	// sets it.
	LocalTest bool `json:"local_test,omitempty"`

	jwt.RegisteredClaims
}

// DecodeClaims parses a token's claims without verifying the signature.
// Suites use it to assert on payload content; it must never gate access.
func DecodeClaims(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
