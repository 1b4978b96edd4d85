package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
)

// AuditEntry captures who touched which record, when, from where, and the
// outcome. Health records demand an access trail even for reads.
type AuditEntry struct {
	AccountID  string
	Role       string
	Resource   string
	Action     string
	Method     string
	Path       string
	RemoteIP   string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries. The middleware always writes the
// structured log; a recorder adds durable storage on top.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc adapts a function to AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that writes an access-trail entry for every
// request against the auth and API surfaces. The handler runs first so the
// entry carries the response status; unauthenticated requests are recorded
// without an account id.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !auditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Resource:   auditResource(path),
				Action:     auditAction(c.Request().Method),
				Method:     c.Request().Method,
				Path:       path,
				RemoteIP:   c.RealIP(),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			if ident := auth.IdentityFromContext(c.Request().Context()); ident != nil {
				entry.AccountID = ident.ID.String()
				entry.Role = ident.Role
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Str("account_id", entry.AccountID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.StatusCode).
				Msg("record access")

			return err
		}
	}
}

func auditablePath(path string) bool {
	return strings.HasPrefix(path, "/auth/") || strings.HasPrefix(path, "/api/v1/")
}

// auditResource takes the first path segment after the surface prefix, so
// /api/v1/appointments/123 audits as "appointments". The whole auth surface
// audits as "auth".
func auditResource(path string) string {
	if strings.HasPrefix(path, "/auth/") {
		return "auth"
	}
	rest := strings.TrimPrefix(path, "/api/v1/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}

func auditAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
