package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/directory"
	"github.com/clinicore/clinicore/internal/domain/scheduling"
)

// UnitOfWork runs fn atomically; every repository call made through the ctx
// it passes to fn lands in the same database transaction.
type UnitOfWork func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	invoices     InvoiceRepository
	items        ItemRepository
	payments     PaymentRepository
	sequences    SequenceRepository
	parties      directory.PartyRepository
	appointments scheduling.AppointmentRepository
	tx           UnitOfWork
	now          func() time.Time
}

func NewService(
	inv InvoiceRepository,
	items ItemRepository,
	pay PaymentRepository,
	seq SequenceRepository,
	parties directory.PartyRepository,
	appts scheduling.AppointmentRepository,
	tx UnitOfWork,
) *Service {
	return &Service{
		invoices:     inv,
		items:        items,
		payments:     pay,
		sequences:    seq,
		parties:      parties,
		appointments: appts,
		tx:           tx,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// NewItemInput is one requested line. TotalPriceCents, when supplied, is a
// cross-check against quantity × unit price, never an override.
type NewItemInput struct {
	ServiceCode     *string
	Description     string
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents *int64
}

type NewInvoiceInput struct {
	PartyID       uuid.UUID
	AppointmentID *uuid.UUID
	PreparedBy    *string
	PaymentMethod string
	InvoiceType   string
	DueDate       *time.Time
	Items         []NewItemInput
}

type UpdateInvoiceInput struct {
	PaymentMethod *string
	InvoiceType   *string
	DueDate       *time.Time
	PreparedBy    *string
}

type UpdateItemInput struct {
	ServiceCode    *string
	Description    *string
	Quantity       *int
	UnitPriceCents *int64
}

type NewPaymentInput struct {
	AmountCents   int64
	Method        string
	TransactionID *string
	Status        string
	Notes         *string
	PaidAt        *time.Time
	RecordedBy    *uuid.UUID
}

func validateItemInput(in NewItemInput) error {
	if in.Description == "" {
		return fmt.Errorf("%w: item description is required", ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: item quantity must be positive", ErrInvalidInput)
	}
	if in.UnitPriceCents <= 0 {
		return fmt.Errorf("%w: item unit price must be positive", ErrInvalidInput)
	}
	if in.TotalPriceCents != nil && *in.TotalPriceCents != ItemTotal(in.Quantity, in.UnitPriceCents) {
		return fmt.Errorf("%w: item total does not match quantity x unit price", ErrInvalidInput)
	}
	return nil
}

// CreateInvoice validates the whole request up front, then performs the
// number allocation, header insert, item batch and total correction as one
// unit of work. The stored total is always recomputed from the stored item
// rows, not from the request payload.
func (s *Service) CreateInvoice(ctx context.Context, in NewInvoiceInput) (*Invoice, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: invoice requires at least one item", ErrInvalidInput)
	}
	for i, it := range in.Items {
		if err := validateItemInput(it); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	if !ValidMethod(in.PaymentMethod) {
		return nil, fmt.Errorf("%w: invalid payment method %q", ErrInvalidInput, in.PaymentMethod)
	}
	if in.InvoiceType == "" {
		in.InvoiceType = TypeOther
	}
	if !ValidInvoiceType(in.InvoiceType) {
		return nil, fmt.Errorf("%w: invalid invoice type %q", ErrInvalidInput, in.InvoiceType)
	}
	if in.PaymentMethod == MethodInsuranceCredit && in.DueDate == nil {
		return nil, fmt.Errorf("%w: %s invoices require a due date", ErrInvalidInput, MethodInsuranceCredit)
	}

	party, err := s.parties.FindByID(ctx, in.PartyID)
	if err != nil {
		if errors.Is(err, directory.ErrPartyNotFound) {
			return nil, fmt.Errorf("%w: party %s", ErrNotFound, in.PartyID)
		}
		return nil, err
	}
	if party.Role != directory.RolePatient {
		return nil, fmt.Errorf("%w: party %s is not a patient", ErrInvalidInput, in.PartyID)
	}
	if in.AppointmentID != nil {
		appt, err := s.appointments.FindByID(ctx, *in.AppointmentID)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				return nil, fmt.Errorf("%w: appointment %s", ErrNotFound, *in.AppointmentID)
			}
			return nil, err
		}
		if appt.PartyID != in.PartyID {
			return nil, fmt.Errorf("%w: appointment %s belongs to a different party", ErrInvalidInput, *in.AppointmentID)
		}
	}

	inv := &Invoice{
		PartyID:       in.PartyID,
		AppointmentID: in.AppointmentID,
		PreparedBy:    in.PreparedBy,
		PaymentMethod: in.PaymentMethod,
		Status:        StatusPending,
		InvoiceType:   in.InvoiceType,
		DueDate:       in.DueDate,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		number, err := s.sequences.Next(ctx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		items := make([]*InvoiceItem, len(in.Items))
		for i, it := range in.Items {
			items[i] = &InvoiceItem{
				InvoiceID:      inv.ID,
				ServiceCode:    it.ServiceCode,
				Description:    it.Description,
				Quantity:       it.Quantity,
				UnitPriceCents: it.UnitPriceCents,
			}
		}
		if err := s.items.CreateBatch(ctx, items); err != nil {
			return err
		}
		total, err := s.items.SumByInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		if err := s.invoices.UpdateTotal(ctx, inv.ID, total); err != nil {
			return err
		}
		inv.TotalAmountCents = total
		inv.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	inv.OwedCents = inv.TotalAmountCents
	return inv, nil
}

// GetInvoice returns the header with its items in insertion order and the
// derived paid/owed figures.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Items, err = s.items.FindByInvoice(ctx, id); err != nil {
		return nil, err
	}
	if inv.PaidCents, err = s.payments.TotalCompletedByInvoice(ctx, id); err != nil {
		return nil, err
	}
	inv.OwedCents = RemainingBalance(inv.TotalAmountCents, inv.PaidCents)
	return inv, nil
}

// ListInvoices pages through invoices with one grouped payment aggregate for
// the whole page. With reconcile set, stale statuses are recomputed against a
// single captured today and written back only where they differ.
func (s *Service) ListInvoices(ctx context.Context, f ListFilter, limit, offset int, reconcile bool) ([]*Invoice, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: invalid status filter %q", ErrInvalidInput, f.Status)
	}
	if f.InvoiceType != "" && !ValidInvoiceType(f.InvoiceType) {
		return nil, 0, fmt.Errorf("%w: invalid type filter %q", ErrInvalidInput, f.InvoiceType)
	}
	invoices, total, err := s.invoices.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	paid, err := s.payments.TotalCompletedByInvoices(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	today := s.now()
	for _, inv := range invoices {
		inv.PaidCents = paid[inv.ID]
		inv.OwedCents = RemainingBalance(inv.TotalAmountCents, inv.PaidCents)
		if !reconcile {
			continue
		}
		status := DetermineStatus(inv.TotalAmountCents, inv.PaidCents, inv.DueDate, today)
		if status != inv.Status {
			if err := s.invoices.UpdateStatus(ctx, inv.ID, status); err != nil {
				return nil, 0, err
			}
			inv.Status = status
		}
	}
	return invoices, total, nil
}

// UpdateInvoice patches the header. Rejected once the invoice is paid; the
// due-date requirement for insurance_credit holds against the post-patch
// state.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, in UpdateInvoiceInput) (*Invoice, error) {
	if in.PaymentMethod != nil && !ValidMethod(*in.PaymentMethod) {
		return nil, fmt.Errorf("%w: invalid payment method %q", ErrInvalidInput, *in.PaymentMethod)
	}
	if in.InvoiceType != nil && !ValidInvoiceType(*in.InvoiceType) {
		return nil, fmt.Errorf("%w: invalid invoice type %q", ErrInvalidInput, *in.InvoiceType)
	}
	var out *Invoice
	err := s.tx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid {
			return fmt.Errorf("%w: paid invoices cannot be modified", ErrConflict)
		}
		if in.PaymentMethod != nil {
			inv.PaymentMethod = *in.PaymentMethod
		}
		if in.InvoiceType != nil {
			inv.InvoiceType = *in.InvoiceType
		}
		if in.DueDate != nil {
			inv.DueDate = in.DueDate
		}
		if in.PreparedBy != nil {
			inv.PreparedBy = in.PreparedBy
		}
		if inv.PaymentMethod == MethodInsuranceCredit && inv.DueDate == nil {
			return fmt.Errorf("%w: %s invoices require a due date", ErrInvalidInput, MethodInsuranceCredit)
		}
		if err := s.invoices.UpdateHeader(ctx, inv); err != nil {
			return err
		}
		if err := s.refreshStatus(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddItem appends a line to an unpaid invoice and refreshes the stored total
// and status in the same unit of work.
func (s *Service) AddItem(ctx context.Context, invoiceID uuid.UUID, in NewItemInput) (*InvoiceItem, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}
	item := &InvoiceItem{
		InvoiceID:      invoiceID,
		ServiceCode:    in.ServiceCode,
		Description:    in.Description,
		Quantity:       in.Quantity,
		UnitPriceCents: in.UnitPriceCents,
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid {
			return fmt.Errorf("%w: paid invoices cannot be modified", ErrConflict)
		}
		if err := s.items.CreateBatch(ctx, []*InvoiceItem{item}); err != nil {
			return err
		}
		return s.refreshTotalAndStatus(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem patches one line; the total is recomputed server-side from the
// post-patch quantity and unit price.
func (s *Service) UpdateItem(ctx context.Context, invoiceID, itemID uuid.UUID, in UpdateItemInput) (*InvoiceItem, error) {
	var out *InvoiceItem
	err := s.tx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid {
			return fmt.Errorf("%w: paid invoices cannot be modified", ErrConflict)
		}
		item, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.InvoiceID != invoiceID {
			return fmt.Errorf("%w: invoice item", ErrNotFound)
		}
		if in.ServiceCode != nil {
			item.ServiceCode = in.ServiceCode
		}
		if in.Description != nil {
			item.Description = *in.Description
		}
		if in.Quantity != nil {
			item.Quantity = *in.Quantity
		}
		if in.UnitPriceCents != nil {
			item.UnitPriceCents = *in.UnitPriceCents
		}
		if err := validateItemInput(NewItemInput{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}); err != nil {
			return err
		}
		if err := s.items.UpdateByID(ctx, item); err != nil {
			return err
		}
		if err := s.refreshTotalAndStatus(ctx, inv); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem deletes a line, refusing to remove the last one.
func (s *Service) RemoveItem(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid {
			return fmt.Errorf("%w: paid invoices cannot be modified", ErrConflict)
		}
		item, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.InvoiceID != invoiceID {
			return fmt.Errorf("%w: invoice item", ErrNotFound)
		}
		count, err := s.items.CountByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return fmt.Errorf("%w: an invoice must keep at least one item", ErrConflict)
		}
		if err := s.items.DeleteByID(ctx, itemID); err != nil {
			return err
		}
		return s.refreshTotalAndStatus(ctx, inv)
	})
}

// RecordPayment appends to the ledger and refreshes the invoice status. The
// ledger itself is append-only; corrections are new rows.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, in NewPaymentInput) (*Payment, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	if !ValidMethod(in.Method) {
		return nil, fmt.Errorf("%w: invalid payment method %q", ErrInvalidInput, in.Method)
	}
	if in.Status == "" {
		in.Status = PaymentCompleted
	}
	if !ValidPaymentStatus(in.Status) {
		return nil, fmt.Errorf("%w: invalid payment status %q", ErrInvalidInput, in.Status)
	}
	p := &Payment{
		InvoiceID:     invoiceID,
		AmountCents:   in.AmountCents,
		Method:        in.Method,
		TransactionID: in.TransactionID,
		Status:        in.Status,
		Notes:         in.Notes,
		RecordedBy:    in.RecordedBy,
	}
	if in.PaidAt != nil {
		p.PaidAt = *in.PaidAt
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		return s.refreshStatus(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPayments returns the full ledger for an invoice in paid-at order.
func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.payments.FindByInvoice(ctx, invoiceID)
}

// RecomputeStatus re-derives the status from current stored state. Calling
// it twice without an intervening mutation performs no second write.
func (s *Service) RecomputeStatus(ctx context.Context, invoiceID uuid.UUID) (string, error) {
	var status string
	err := s.tx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := s.refreshStatus(ctx, inv); err != nil {
			return err
		}
		status = inv.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// refreshTotalAndStatus recomputes the stored total from the item rows, then
// the status from the payment ledger. Must run inside the unit of work that
// holds the header lock.
func (s *Service) refreshTotalAndStatus(ctx context.Context, inv *Invoice) error {
	total, err := s.items.SumByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	if total != inv.TotalAmountCents {
		if err := s.invoices.UpdateTotal(ctx, inv.ID, total); err != nil {
			return err
		}
		inv.TotalAmountCents = total
	}
	return s.refreshStatus(ctx, inv)
}

func (s *Service) refreshStatus(ctx context.Context, inv *Invoice) error {
	paid, err := s.payments.TotalCompletedByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	inv.PaidCents = paid
	inv.OwedCents = RemainingBalance(inv.TotalAmountCents, paid)
	status := DetermineStatus(inv.TotalAmountCents, paid, inv.DueDate, s.now())
	if status == inv.Status {
		return nil
	}
	if err := s.invoices.UpdateStatus(ctx, inv.ID, status); err != nil {
		return err
	}
	inv.Status = status
	return nil
}
