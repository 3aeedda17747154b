package directory

import (
	"context"

	"github.com/google/uuid"
)

type PartyRepository interface {
	Create(ctx context.Context, p *Party) error
	FindByID(ctx context.Context, id uuid.UUID) (*Party, error)
	List(ctx context.Context, role string, limit, offset int) ([]*Party, int, error)
}
