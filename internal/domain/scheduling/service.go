package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAppointmentNotFound is returned when a lookup misses.
var ErrAppointmentNotFound = errors.New("appointment not found")

type Service struct {
	appointments AppointmentRepository
}

func NewService(appointments AppointmentRepository) *Service {
	return &Service{appointments: appointments}
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PartyID == uuid.Nil {
		return fmt.Errorf("party_id is required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at is required")
	}
	if a.Status == "" {
		a.Status = "scheduled"
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.FindByID(ctx, id)
}
