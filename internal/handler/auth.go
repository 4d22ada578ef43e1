package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie holding the session JWT.
const SessionCookie = "equinova_session"

// userIDHeader is trusted only when authentication is disabled.
const userIDHeader = "X-User-ID"

type userIDKey struct{}

// sessionClaims is the token payload. The id claim may be a string or a
// number depending on the issuer.
type sessionClaims struct {
	UserID any `json:"id"`
	jwt.RegisteredClaims
}

// Authenticator resolves the calling user from a session token.
type Authenticator struct {
	secret   []byte
	disabled bool
}

// NewAuthenticator creates an Authenticator. When disabled is true the
// X-User-ID header is trusted instead of a token.
func NewAuthenticator(secret string, disabled bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), disabled: disabled}
}

// Middleware rejects requests without a valid identity with 401 and stores
// the user ID in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	if a.disabled {
		if id := strings.TrimSpace(r.Header.Get(userIDHeader)); id != "" {
			return id, nil
		}
		return "", errors.New("missing X-User-ID header")
	}

	token := bearerToken(r)
	if token == "" {
		return "", errors.New("authentication required")
	}
	return a.ParseToken(token)
}

// ParseToken validates an HMAC-signed token and returns its id claim.
func (a *Authenticator) ParseToken(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	switch id := claims.UserID.(type) {
	case string:
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	return "", errors.New("token has no user id")
}

// IssueToken signs a token for userID. It is used by tests and local
// tooling; production tokens come from the auth service.
func (a *Authenticator) IssueToken(userID string, claims jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{UserID: userID, RegisteredClaims: claims}).SignedString(a.secret)
}

func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// UserID returns the authenticated user stored by Middleware.
func UserID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDKey{}).(string)
	if !ok || id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}
