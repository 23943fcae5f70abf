package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"saas-subscription-backend/internal/infra/logging"
)

// AuthManager validates HS256 bearer tokens minted by the identity layer.
// Token issuance lives with the identity provider; this side only verifies
// and extracts the member id.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

type MemberClaims struct {
	jwt.RegisteredClaims
}

// Mint is used by tests and dev tooling to produce a valid member token.
func (a *AuthManager) Mint(memberID string) (string, error) {
	now := time.Now()
	claims := MemberClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) parse(tok string) (*MemberClaims, error) {
	claims := &MemberClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type ctxKey string

const ctxMemberID ctxKey = "member_id"

// MemberID returns the authenticated member id placed by Middleware.
func MemberID(ctx context.Context) string {
	v, _ := ctx.Value(ctxMemberID).(string)
	return v
}

// Middleware enforces a bearer token and stores the member id in context.
func (a *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		claims, err := a.parse(strings.TrimSpace(hdr[7:]))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxMemberID, claims.Subject)
		ctx = logging.WithMemberID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
