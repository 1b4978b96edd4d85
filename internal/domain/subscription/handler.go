package subscription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

// Handler exposes plan and subscription operations over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the routes. Anyone signed in can browse plans;
// patients subscribe themselves; staff manage plans and everyone's
// subscriptions.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/plans", h.ListPlans)
	api.GET("/plans/:id", h.GetPlan)

	managePlans := api.Group("", auth.RequireRole("admin", "hcmanager"))
	managePlans.POST("/plans", h.CreatePlan)
	managePlans.PUT("/plans/:id", h.UpdatePlan)

	subs := api.Group("", auth.RequireRole("patient", "admin", "staff", "hcmanager"))
	subs.GET("/subscriptions", h.List)
	subs.GET("/subscriptions/:id", h.Get)
	subs.POST("/subscriptions", h.Subscribe)
	subs.POST("/subscriptions/:id/cancel", h.Cancel)

	manageSubs := api.Group("", auth.RequireRole("admin", "staff", "hcmanager"))
	manageSubs.POST("/subscriptions/:id/renew", h.Renew)
	manageSubs.POST("/subscriptions/:id/past-due", h.MarkPastDue)
}

// CreatePlan handles POST /plans.
func (h *Handler) CreatePlan(c echo.Context) error {
	var p Plan
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePlan(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdatePlan handles PUT /plans/:id.
func (h *Handler) UpdatePlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Plan
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePlan(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "plan not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// GetPlan handles GET /plans/:id.
func (h *Handler) GetPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPlan(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "plan not found")
	}
	return c.JSON(http.StatusOK, p)
}

// ListPlans handles GET /plans.
func (h *Handler) ListPlans(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListPlans(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

// Subscribe handles POST /subscriptions. Patients subscribe themselves;
// staff may name a patient in the body.
func (h *Handler) Subscribe(c echo.Context) error {
	var body struct {
		PatientID uuid.UUID `json:"patient_id"`
		PlanID    uuid.UUID `json:"plan_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if ident := auth.IdentityFromContext(ctx); ident != nil && ident.Role == "patient" {
		body.PatientID = ident.ID
	}
	if body.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	sub, err := h.svc.Subscribe(ctx, body.PatientID, body.PlanID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "plan not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sub)
}

// Get handles GET /subscriptions/:id.
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if ident := auth.IdentityFromContext(c.Request().Context()); ident != nil &&
		ident.Role == "patient" && sub.PatientID != ident.ID {
		return echo.NewHTTPError(http.StatusForbidden, "not your subscription")
	}
	return c.JSON(http.StatusOK, sub)
}

// List handles GET /subscriptions. Patient callers see only their own.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if ident := auth.IdentityFromContext(ctx); ident != nil && ident.Role == "patient" {
		list, total, err := h.svc.ListByPatient(ctx, ident.ID, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
	}

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		list, total, err := h.svc.ListByPatient(ctx, pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
	}

	list, total, err := h.svc.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

// Cancel handles POST /subscriptions/:id/cancel. Patients may only cancel
// their own.
func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	sub, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if ident := auth.IdentityFromContext(ctx); ident != nil &&
		ident.Role == "patient" && sub.PatientID != ident.ID {
		return echo.NewHTTPError(http.StatusForbidden, "not your subscription")
	}
	sub, err = h.svc.Cancel(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

// Renew handles POST /subscriptions/:id/renew.
func (h *Handler) Renew(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.Renew(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

// MarkPastDue handles POST /subscriptions/:id/past-due.
func (h *Handler) MarkPastDue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.MarkPastDue(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}
