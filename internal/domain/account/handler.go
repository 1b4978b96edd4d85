package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

// Handler exposes the account service over HTTP.
type Handler struct {
	svc          *Service
	sessionTTL   time.Duration
	cookieSecure bool
}

// NewHandler creates a Handler. sessionTTL bounds the session cookie's
// lifetime to match the token's.
func NewHandler(svc *Service, sessionTTL time.Duration, cookieSecure bool) *Handler {
	return &Handler{svc: svc, sessionTTL: sessionTTL, cookieSecure: cookieSecure}
}

// RegisterRoutes mounts the auth surface. Public routes carry no gate; the
// 2FA completion route accepts only a pre-2FA token; the rest require a full
// session.
func (h *Handler) RegisterRoutes(g *echo.Group, gate, pre2faGate echo.MiddlewareFunc) {
	g.POST("/register", h.Register)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/resend-otp", h.ResendOTP)
	g.POST("/login", h.Login)

	g.POST("/verify-2fa", h.VerifyTwoFactor, pre2faGate)

	g.POST("/2fa/enable", h.EnableTwoFactor, gate)
	g.POST("/2fa/verify-enable", h.ConfirmTwoFactor, gate)
	g.POST("/2fa/disable", h.DisableTwoFactor, gate)
	g.GET("/me", h.Me, gate)
	g.POST("/logout", h.Logout, gate)
}

// RegisterAdminRoutes mounts the administrative account mutators.
func (h *Handler) RegisterAdminRoutes(g *echo.Group) {
	g.GET("/accounts", h.ListAccounts)
	g.GET("/accounts/:id", h.GetAccount)
	g.PATCH("/accounts/:id/role", h.SetRole)
	g.PATCH("/accounts/:id/status", h.SetStatus)
}

func (h *Handler) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register handles POST /auth/register.
func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		case errors.Is(err, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
		}
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"account_id": a.ID,
		"message":    "verification code sent",
	})
}

type verifyOTPRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.svc.VerifyOTP(c.Request().Context(), req.AccountID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		case errors.Is(err, ErrInvalidCode):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired code")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "verification failed")
		}
	}

	h.setSessionCookie(c, res.Token)
	return c.JSON(http.StatusOK, res)
}

type resendOTPRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}

// ResendOTP handles POST /auth/resend-otp.
func (h *Handler) ResendOTP(c echo.Context) error {
	var req resendOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.ResendOTP(c.Request().Context(), req.AccountID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not resend code")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "verification code sent"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, ErrAccountNotActive):
			return echo.NewHTTPError(http.StatusForbidden, "account not active")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
		}
	}

	if res.Token != "" {
		h.setSessionCookie(c, res.Token)
	}
	return c.JSON(http.StatusOK, res)
}

type verifyTwoFactorRequest struct {
	Code string `json:"code"`
}

// VerifyTwoFactor handles POST /auth/verify-2fa. The pre-2FA gate has
// already put the account id on the context.
func (h *Handler) VerifyTwoFactor(c echo.Context) error {
	accountID, ok := auth.Pre2FAAccountFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing pre-2fa token")
	}

	var req verifyTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.svc.VerifyTwoFactorLogin(c.Request().Context(), accountID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid code")
		case errors.Is(err, ErrAccountNotActive):
			return echo.NewHTTPError(http.StatusForbidden, "account not active")
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid code")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "verification failed")
		}
	}

	h.setSessionCookie(c, res.Token)
	return c.JSON(http.StatusOK, res)
}

// EnableTwoFactor handles POST /auth/2fa/enable.
func (h *Handler) EnableTwoFactor(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	setup, err := h.svc.BeginTwoFactorSetup(c.Request().Context(), ident.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not begin setup")
	}
	return c.JSON(http.StatusOK, setup)
}

// ConfirmTwoFactor handles POST /auth/2fa/verify-enable.
func (h *Handler) ConfirmTwoFactor(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req verifyTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.ConfirmTwoFactorSetup(c.Request().Context(), ident.ID, req.Code); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid code")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not confirm setup")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "two-factor authentication enabled"})
}

// DisableTwoFactor handles POST /auth/2fa/disable.
func (h *Handler) DisableTwoFactor(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	if err := h.svc.DisableTwoFactor(c.Request().Context(), ident.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not disable")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "two-factor authentication disabled"})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	a, err := h.svc.Get(c.Request().Context(), ident.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, a)
}

// Logout handles POST /auth/logout. Sessions are stateless JWTs; logout
// clears the cookie so browser clients drop the credential.
func (h *Handler) Logout(c echo.Context) error {
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

// -- Administrative handlers --

// ListAccounts handles GET /accounts.
func (h *Handler) ListAccounts(c echo.Context) error {
	pg := pagination.FromContext(c)
	accounts, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(accounts, total, pg.Limit, pg.Offset))
}

// GetAccount handles GET /accounts/:id.
func (h *Handler) GetAccount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, a)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PATCH /accounts/:id/role.
func (h *Handler) SetRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetRole(c.Request().Context(), id, req.Role); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "role updated"})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /accounts/:id/status.
func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetStatus(c.Request().Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "status updated"})
}
