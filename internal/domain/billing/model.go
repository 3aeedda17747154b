package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice status values, derived from the payment ledger and the due date.
// Clients never set these directly.
const (
	StatusPending       = "pending"
	StatusPartiallyPaid = "partially_paid"
	StatusOverdue       = "overdue"
	StatusPaid          = "paid"
)

const (
	MethodCash            = "cash"
	MethodCard            = "card"
	MethodBankTransfer    = "bank_transfer"
	MethodInsuranceCredit = "insurance_credit"
)

const (
	TypeConsultation = "consultation"
	TypeTreatment    = "treatment"
	TypePharmacy     = "pharmacy"
	TypeOther        = "other"
)

const (
	PaymentCompleted = "completed"
	PaymentPending   = "pending"
	PaymentFailed    = "failed"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusPartiallyPaid, StatusOverdue, StatusPaid:
		return true
	}
	return false
}

func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodInsuranceCredit:
		return true
	}
	return false
}

func ValidInvoiceType(t string) bool {
	switch t {
	case TypeConsultation, TypeTreatment, TypePharmacy, TypeOther:
		return true
	}
	return false
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentCompleted, PaymentPending, PaymentFailed:
		return true
	}
	return false
}

// Invoice is the billing header. All amounts are integer minor units; the
// HTTP layer converts to and from decimal strings.
type Invoice struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	InvoiceNumber    string     `db:"invoice_number" json:"invoice_number"`
	PartyID          uuid.UUID  `db:"party_id" json:"party_id"`
	AppointmentID    *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	PreparedBy       *string    `db:"prepared_by" json:"prepared_by,omitempty"`
	TotalAmountCents int64      `db:"total_amount_cents" json:"-"`
	PaymentMethod    string     `db:"payment_method" json:"payment_method"`
	Status           string     `db:"status" json:"status"`
	InvoiceType      string     `db:"invoice_type" json:"invoice_type"`
	DueDate          *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	// Populated on fetch; never stored.
	Items      []*InvoiceItem `db:"-" json:"items,omitempty"`
	PaidCents  int64          `db:"-" json:"-"`
	OwedCents  int64          `db:"-" json:"-"`
}

// InvoiceItem is one billed line. TotalPriceCents is always
// Quantity × UnitPriceCents; the repo recomputes it on every write.
type InvoiceItem struct {
	ID              uuid.UUID `db:"id" json:"id"`
	InvoiceID       uuid.UUID `db:"invoice_id" json:"invoice_id"`
	ServiceCode     *string   `db:"service_code" json:"service_code,omitempty"`
	Description     string    `db:"description" json:"description"`
	Quantity        int       `db:"quantity" json:"quantity"`
	UnitPriceCents  int64     `db:"unit_price_cents" json:"-"`
	TotalPriceCents int64     `db:"total_price_cents" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Payment is one append-only ledger row. Only completed rows count toward
// the invoice balance.
type Payment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InvoiceID     uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	AmountCents   int64      `db:"amount_cents" json:"-"`
	Method        string     `db:"method" json:"method"`
	TransactionID *string    `db:"transaction_id" json:"transaction_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	PaidAt        time.Time  `db:"paid_at" json:"paid_at"`
	RecordedBy    *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

var centsFactor = decimal.NewFromInt(100)

// ParseAmount converts a decimal string such as "50.00" into minor units.
// It rejects malformed input, more than two fraction digits, and
// non-positive values.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", ErrInvalidInput, s)
	}
	scaled := d.Mul(centsFactor)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q has more than two decimal places", ErrInvalidInput, s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive, got %q", ErrInvalidInput, s)
	}
	return scaled.IntPart(), nil
}

// FormatCents renders minor units as a two-decimal string for API responses.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(centsFactor).StringFixed(2)
}

// ItemTotal computes quantity × unit price exactly in minor units.
func ItemTotal(quantity int, unitPriceCents int64) int64 {
	return int64(quantity) * unitPriceCents
}
