package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrPartyNotFound is returned when a lookup misses.
var ErrPartyNotFound = errors.New("party not found")

type Service struct {
	parties PartyRepository
}

func NewService(parties PartyRepository) *Service {
	return &Service{parties: parties}
}

func (s *Service) CreateParty(ctx context.Context, p *Party) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !ValidRole(p.Role) {
		return fmt.Errorf("invalid party role: %s", p.Role)
	}
	return s.parties.Create(ctx, p)
}

func (s *Service) GetParty(ctx context.Context, id uuid.UUID) (*Party, error) {
	return s.parties.FindByID(ctx, id)
}

func (s *Service) ListParties(ctx context.Context, role string, limit, offset int) ([]*Party, int, error) {
	if role != "" && !ValidRole(role) {
		return nil, 0, fmt.Errorf("invalid party role: %s", role)
	}
	return s.parties.List(ctx, role, limit, offset)
}
