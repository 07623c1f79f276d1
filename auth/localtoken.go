package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const localTokenIssuer = "goldenpath-e2e-local"

// fallbackSigningSecret signs local tokens when no staging JWT secret is
// configured. It is a fixture value, not a credential: local tokens are not
// cryptographically secure and staging rejects them.
const fallbackSigningSecret = "goldenpath-local-e2e-secret" //nolint:gosec // test fixture, not a credential

// localTokenBundle fabricates a structurally valid token bundle without
// contacting staging, so downstream suites can keep exercising message flows
// against a mocked identity while staging auth is flaky. The token always
// parses as header.payload.signature and carries local_test: true.
func localTokenBundle(secret string, req TokenRequest, now time.Time, ttl time.Duration) (TokenBundle, error) {
	if secret == "" {
		secret = fallbackSigningSecret
	}
	userID := "local-" + uuid.NewString()
	claims := Claims{
		Email:       req.Email,
		Name:        req.Name,
		Permissions: req.Permissions,
		LocalTest:   true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localTokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return TokenBundle{}, fmt.Errorf("auth: sign local token: %w", err)
	}
	return TokenBundle{
		AccessToken:  token,
		RefreshToken: "local-refresh-" + uuid.NewString(),
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl / time.Second),
		User: User{
			ID:          userID,
			Email:       req.Email,
			Name:        req.Name,
			Permissions: req.Permissions,
		},
		Source: SourceLocalFallback,
	}, nil
}
