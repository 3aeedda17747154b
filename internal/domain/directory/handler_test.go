package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newHandlerFixture() (*Handler, *echo.Echo, *Service) {
	svc := newTestService()
	return NewHandler(svc), echo.New(), svc
}

func TestHandlerCreateParty(t *testing.T) {
	h, e, _ := newHandlerFixture()
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"name":"Asha Rao","role":"patient"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateParty(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerCreatePartyBadRole(t *testing.T) {
	h, e, _ := newHandlerFixture()
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"name":"Asha Rao","role":"alien"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateParty(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerGetParty(t *testing.T) {
	h, e, svc := newHandlerFixture()
	p := &Party{Name: "Asha Rao", Role: RolePatient}
	if err := svc.CreateParty(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetParty(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandlerGetPartyNotFound(t *testing.T) {
	h, e, _ := newHandlerFixture()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetParty(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandlerListParties(t *testing.T) {
	h, e, svc := newHandlerFixture()
	if err := svc.CreateParty(context.Background(), &Party{Name: "Asha Rao", Role: RolePatient}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?role=patient", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListParties(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
