package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

func identityGate(ident *auth.Identity) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.ContextWithIdentity(c.Request().Context(), ident)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreate_HTTP(t *testing.T) {
	svc, _, _, patientID := newTestService()
	staff := &auth.Identity{ID: uuid.New(), Role: "staff", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(staff)))

	body := `{"patient_id":"` + patientID.String() + `","amount_cents":2500,"description":"consultation fee"}`
	rec := doRequest(e, http.MethodPost, "/api/payments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var p Payment
	_ = json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Status != StatusPending || !strings.HasPrefix(p.Reference, "PAY-") {
		t.Errorf("payment = %+v", p)
	}
}

func TestCreate_PatientForbidden(t *testing.T) {
	svc, _, _, patientID := newTestService()
	patient := &auth.Identity{ID: patientID, Role: "patient", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(patient)))

	rec := doRequest(e, http.MethodPost, "/api/payments", `{}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCreate_InvalidBody(t *testing.T) {
	svc, _, _, patientID := newTestService()
	staff := &auth.Identity{ID: uuid.New(), Role: "staff", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(staff)))

	body := `{"patient_id":"` + patientID.String() + `","amount_cents":-5}`
	rec := doRequest(e, http.MethodPost, "/api/payments", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGet_PatientOwnOnly(t *testing.T) {
	svc, repo, _, patientID := newTestService()

	mine := validPayment(patientID)
	_ = repo.Create(context.Background(), mine)
	theirs := validPayment(uuid.New())
	_ = repo.Create(context.Background(), theirs)

	patient := &auth.Identity{ID: patientID, Role: "patient", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(patient)))

	rec := doRequest(e, http.MethodGet, "/api/payments/"+mine.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("own payment status = %d", rec.Code)
	}
	rec = doRequest(e, http.MethodGet, "/api/payments/"+theirs.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("other's payment status = %d, want 403", rec.Code)
	}
}

func TestList_PatientSeesOwnOnly(t *testing.T) {
	svc, repo, _, patientID := newTestService()
	_ = repo.Create(context.Background(), validPayment(patientID))
	_ = repo.Create(context.Background(), validPayment(uuid.New()))

	patient := &auth.Identity{ID: patientID, Role: "patient", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(patient)))

	rec := doRequest(e, http.MethodGet, "/api/payments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp pagination.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
}

func TestList_StaffSeesAll(t *testing.T) {
	svc, repo, _, patientID := newTestService()
	_ = repo.Create(context.Background(), validPayment(patientID))
	_ = repo.Create(context.Background(), validPayment(uuid.New()))

	staff := &auth.Identity{ID: uuid.New(), Role: "staff", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(staff)))

	rec := doRequest(e, http.MethodGet, "/api/payments", "")
	var resp pagination.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}

	rec = doRequest(e, http.MethodGet, "/api/payments?patient_id="+patientID.String(), "")
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("filtered total = %d, want 1", resp.Total)
	}
}

func TestMarkPaid_HTTP(t *testing.T) {
	svc, _, notify, patientID := newTestService()
	p := validPayment(patientID)
	_ = svc.Create(context.Background(), p)

	staff := &auth.Identity{ID: uuid.New(), Role: "staff", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(staff)))

	rec := doRequest(e, http.MethodPost, "/api/payments/"+p.ID.String()+"/pay", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var paid Payment
	_ = json.Unmarshal(rec.Body.Bytes(), &paid)
	if paid.Status != StatusPaid || paid.PaidAt == nil {
		t.Errorf("payment = %+v", paid)
	}
	if len(notify.receipts) != 1 {
		t.Errorf("receipts = %d, want 1", len(notify.receipts))
	}

	rec = doRequest(e, http.MethodPost, "/api/payments/"+uuid.New().String()+"/pay", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestUpdateStatus_HTTP(t *testing.T) {
	svc, _, _, patientID := newTestService()
	p := validPayment(patientID)
	_ = svc.Create(context.Background(), p)

	staff := &auth.Identity{ID: uuid.New(), Role: "staff", Status: "active"}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api", identityGate(staff)))

	rec := doRequest(e, http.MethodPatch, "/api/payments/"+p.ID.String()+"/status", `{"status":"refunded"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("refund pending status = %d, want 400", rec.Code)
	}

	rec = doRequest(e, http.MethodPatch, "/api/payments/"+p.ID.String()+"/status", `{"status":"failed"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got Payment
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusFailed {
		t.Errorf("status = %q", got.Status)
	}
}
