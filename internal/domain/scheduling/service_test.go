package scheduling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type mockAppointmentRepo struct {
	items map[uuid.UUID]*Appointment
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.items[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) FindByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}

func newTestService() *Service {
	return NewService(&mockAppointmentRepo{items: make(map[uuid.UUID]*Appointment)})
}

func TestCreateAppointment(t *testing.T) {
	svc := newTestService()
	a := &Appointment{PartyID: uuid.New(), ScheduledAt: time.Now().Add(24 * time.Hour)}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != "scheduled" {
		t.Errorf("default status = %q", a.Status)
	}
	got, err := svc.GetAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PartyID != a.PartyID {
		t.Errorf("party = %s", got.PartyID)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		ScheduledAt: time.Now(),
	}); err == nil {
		t.Error("expected error for missing party")
	}
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		PartyID: uuid.New(),
	}); err == nil {
		t.Error("expected error for missing scheduled_at")
	}
}

func TestGetAppointmentMissing(t *testing.T) {
	svc := newTestService()
	if _, err := svc.GetAppointment(context.Background(), uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestHandlerGetAppointmentNotFound(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetAppointment(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
