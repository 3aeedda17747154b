package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invCols = `id, invoice_number, party_id, appointment_id, prepared_by,
	total_amount_cents, payment_method, status, invoice_type, due_date,
	created_at, updated_at`

func (r *invoiceRepoPG) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PartyID, &inv.AppointmentID, &inv.PreparedBy,
		&inv.TotalAmountCents, &inv.PaymentMethod, &inv.Status, &inv.InvoiceType, &inv.DueDate,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_number, party_id, appointment_id, prepared_by,
			total_amount_cents, payment_method, status, invoice_type, due_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.PartyID, inv.AppointmentID, inv.PreparedBy,
		inv.TotalAmountCents, inv.PaymentMethod, inv.Status, inv.InvoiceType, inv.DueDate).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *invoiceRepoPG) FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
}

// invoiceSortCols is the closed allow-list of sortable columns. Anything
// else falls back to created_at.
var invoiceSortCols = map[string]string{
	"created_at":     "created_at",
	"due_date":       "due_date",
	"total_amount":   "total_amount_cents",
	"invoice_number": "invoice_number",
	"status":         "status",
}

func (r *invoiceRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PartyID != nil {
		add("party_id = $%d", *f.PartyID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.InvoiceType != "" {
		add("invoice_type = $%d", f.InvoiceType)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := invoiceSortCols[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	q := fmt.Sprintf(`SELECT %s FROM invoices%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		invCols, clause, col, dir, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func (r *invoiceRepoPG) UpdateHeader(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET payment_method=$2, invoice_type=$3, due_date=$4,
			prepared_by=$5, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.PaymentMethod, inv.InvoiceType, inv.DueDate, inv.PreparedBy)
	return err
}

func (r *invoiceRepoPG) UpdateTotal(ctx context.Context, id uuid.UUID, totalCents int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET total_amount_cents=$2, updated_at=NOW() WHERE id = $1`, id, totalCents)
	return err
}

func (r *invoiceRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `id, invoice_id, service_code, description, quantity,
	unit_price_cents, total_price_cents, created_at`

func (r *itemRepoPG) scanItem(row pgx.Row) (*InvoiceItem, error) {
	var it InvoiceItem
	err := row.Scan(&it.ID, &it.InvoiceID, &it.ServiceCode, &it.Description, &it.Quantity,
		&it.UnitPriceCents, &it.TotalPriceCents, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice item", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateBatch writes all rows in one multi-row INSERT so a partial batch can
// never land even outside an enclosing transaction.
func (r *itemRepoPG) CreateBatch(ctx context.Context, items []*InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	var (
		values []string
		args   []interface{}
	)
	for _, it := range items {
		it.ID = uuid.New()
		it.TotalPriceCents = ItemTotal(it.Quantity, it.UnitPriceCents)
		n := len(args)
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7))
		args = append(args, it.ID, it.InvoiceID, it.ServiceCode, it.Description,
			it.Quantity, it.UnitPriceCents, it.TotalPriceCents)
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, service_code, description,
			quantity, unit_price_cents, total_price_cents)
		VALUES `+strings.Join(values, ","), args...)
	return err
}

func (r *itemRepoPG) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM invoice_items WHERE invoice_id = $1 ORDER BY created_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InvoiceItem
	for rows.Next() {
		it, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *itemRepoPG) FindByID(ctx context.Context, id uuid.UUID) (*InvoiceItem, error) {
	return r.scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM invoice_items WHERE id = $1`, id))
}

func (r *itemRepoPG) UpdateByID(ctx context.Context, item *InvoiceItem) error {
	item.TotalPriceCents = ItemTotal(item.Quantity, item.UnitPriceCents)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice_items SET service_code=$2, description=$3, quantity=$4,
			unit_price_cents=$5, total_price_cents=$6
		WHERE id = $1`,
		item.ID, item.ServiceCode, item.Description, item.Quantity,
		item.UnitPriceCents, item.TotalPriceCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice item", ErrNotFound)
	}
	return nil
}

func (r *itemRepoPG) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice item", ErrNotFound)
	}
	return nil
}

func (r *itemRepoPG) CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoice_items WHERE invoice_id = $1`, invoiceID).Scan(&n)
	return n, err
}

func (r *itemRepoPG) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(total_price_cents), 0) FROM invoice_items WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	return sum, err
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const payCols = `id, invoice_id, amount_cents, method, transaction_id, status,
	notes, paid_at, recorded_by, created_at`

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, invoice_id, amount_cents, method, transaction_id,
			status, notes, paid_at, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		p.ID, p.InvoiceID, p.AmountCents, p.Method, p.TransactionID,
		p.Status, p.Notes, p.PaidAt, p.RecordedBy).
		Scan(&p.CreatedAt)
}

func (r *paymentRepoPG) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+payCols+` FROM payments WHERE invoice_id = $1 ORDER BY paid_at, created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &p.Method, &p.TransactionID,
			&p.Status, &p.Notes, &p.PaidAt, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *paymentRepoPG) TotalCompletedByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		WHERE invoice_id = $1 AND status = $2`, invoiceID, PaymentCompleted).Scan(&sum)
	return sum, err
}

func (r *paymentRepoPG) TotalCompletedByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	totals := make(map[uuid.UUID]int64, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return totals, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT invoice_id, SUM(amount_cents) FROM payments
		WHERE invoice_id = ANY($1) AND status = $2
		GROUP BY invoice_id`, invoiceIDs, PaymentCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  uuid.UUID
			sum int64
		)
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		totals[id] = sum
	}
	return totals, rows.Err()
}

// =========== Sequence Repository ===========

type sequenceRepoPG struct{ pool *pgxpool.Pool }

func NewSequenceRepoPG(pool *pgxpool.Pool) SequenceRepository { return &sequenceRepoPG{pool: pool} }

func (r *sequenceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Next bumps the per-year counter with an atomic upsert. The row lock taken
// by the UPDATE serializes concurrent allocations; because the bump happens
// inside the caller's transaction, an aborted creation rolls the counter
// back with everything else.
func (r *sequenceRepoPG) Next(ctx context.Context) (string, error) {
	year := time.Now().UTC().Year()
	scope := fmt.Sprintf("invoice:%d", year)
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_sequences (scope, last_value)
		VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`, scope).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("allocate invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%d-%06d", year, n), nil
}
