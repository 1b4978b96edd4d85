package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookie is the name of the HTTP-only cookie carrying the full
// session token for browser clients.
const SessionCookie = "carelink_session"

// Identity is the request-time view of an account, re-fetched from the
// store on every authenticated request so role and status changes take
// effect immediately instead of trusting stale token claims.
type Identity struct {
	ID     uuid.UUID
	Email  string
	Name   string
	Role   string
	Status string
}

// IdentitySource resolves an account id to its current Identity. Implemented
// by the account service; defined here so this package does not depend on
// the domain package.
type IdentitySource interface {
	Resolve(ctx context.Context, id uuid.UUID) (*Identity, error)
}

type contextKey string

const (
	identityKey contextKey = "auth_identity"
	pre2FAKey   contextKey = "auth_pre2fa_account"
)

// ExtractToken returns the bearer token for a request. The session cookie
// takes precedence over the Authorization header; the original system
// checked both inconsistently, so the precedence is fixed here and
// documented: cookie first, header as fallback for non-browser clients.
func ExtractToken(c echo.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Authenticate returns the gate middleware for authenticated routes. It
// validates the token as a full session, re-fetches the account, rejects
// anything but active status, and attaches the Identity to the request
// context.
func Authenticate(issuer *Issuer, src IdentitySource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := ExtractToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
			}

			claims, err := issuer.Validate(tokenStr, TokenFull)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
			}

			accountID, err := claims.AccountID()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
			}

			ident, err := src.Resolve(c.Request().Context(), accountID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
			}
			if ident.Status != "active" {
				return echo.NewHTTPError(http.StatusUnauthorized, "account is not active")
			}

			ctx := context.WithValue(c.Request().Context(), identityKey, ident)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// AuthenticatePre2FA returns the middleware for the single route that
// accepts the pre-2FA token. Possession of this token grants nothing else.
func AuthenticatePre2FA(issuer *Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := ExtractToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
			}

			claims, err := issuer.Validate(tokenStr, TokenPre2FA)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			accountID, err := claims.AccountID()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			ctx := context.WithValue(c.Request().Context(), pre2FAKey, accountID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// IdentityFromContext returns the authenticated Identity, or nil outside an
// authenticated request.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityKey).(*Identity)
	return ident
}

// ContextWithIdentity returns a context carrying the identity. Handler tests
// use it to stand in for the session middleware.
func ContextWithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// Pre2FAAccountFromContext returns the account id proven by a pre-2FA token.
func Pre2FAAccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(pre2FAKey).(uuid.UUID)
	return id, ok
}
