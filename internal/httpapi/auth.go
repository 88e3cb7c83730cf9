package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"weekly-planner/internal/shared"
)

// Claims identify the household a caller acts for. Tokens are issued by the
// upstream login service and signed with the shared secret.
type Claims struct {
	HouseholdID int64 `json:"hid"`
	jwt.RegisteredClaims
}

// Authenticator verifies household identity tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator for HS256 tokens signed with secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for householdID that expires after ttl.
func (a *Authenticator) IssueToken(householdID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		HouseholdID: householdID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the household it was issued for.
func (a *Authenticator) Verify(raw string) (int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("failed to verify token: %w", err)
	}
	if claims.HouseholdID <= 0 {
		return 0, errors.New("token carries no household")
	}
	return claims.HouseholdID, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's household in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, r, shared.Unauthorized("missing bearer token"))
			return
		}

		householdID, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			logger(r.Context()).Debug("rejected token", "error", err)
			writeError(w, r, shared.Unauthorized("invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(withHousehold(r.Context(), householdID)))
	})
}

type householdKey struct{}

func withHousehold(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, householdKey{}, id)
}

// HouseholdFrom returns the authenticated household of a request context.
func HouseholdFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(householdKey{}).(int64)
	return id, ok
}
