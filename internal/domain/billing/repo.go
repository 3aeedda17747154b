package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows and orders invoice listings. SortBy is checked against
// a closed allow-list in the repo; unknown columns fall back to created_at.
type ListFilter struct {
	PartyID     *uuid.UUID
	Status      string
	InvoiceType string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortDesc    bool
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate row-locks the header so concurrent mutations of the
	// same invoice serialize. Only valid inside a unit of work.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error)
	UpdateHeader(ctx context.Context, inv *Invoice) error
	UpdateTotal(ctx context.Context, id uuid.UUID, totalCents int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type ItemRepository interface {
	CreateBatch(ctx context.Context, items []*InvoiceItem) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*InvoiceItem, error)
	UpdateByID(ctx context.Context, item *InvoiceItem) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error)
	// SumByInvoice is the authoritative invoice total, computed from stored
	// line rows rather than from request payloads.
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	TotalCompletedByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	// TotalCompletedByInvoices aggregates a whole listing page in one grouped
	// query; absent ids simply have no entry in the result map.
	TotalCompletedByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// SequenceRepository allocates gapless-enough invoice numbers. Next must be
// called inside the active unit of work so an aborted creation cannot leak
// an observed value into a committed invoice.
type SequenceRepository interface {
	Next(ctx context.Context) (string, error)
}
