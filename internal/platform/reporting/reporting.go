package reporting

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// BillingSummary aggregates the ledger for a reporting window. Amounts are
// decimal strings to match the rest of the API surface.
type BillingSummary struct {
	From             *time.Time `json:"from,omitempty"`
	To               *time.Time `json:"to,omitempty"`
	InvoiceCount     int64      `json:"invoice_count"`
	TotalBilled      string     `json:"total_billed"`
	TotalCollected   string     `json:"total_collected"`
	TotalOutstanding string     `json:"total_outstanding"`
	OverdueCount     int64      `json:"overdue_count"`
	OverdueAmount    string     `json:"overdue_amount"`
	GeneratedAt      time.Time  `json:"generated_at"`
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole("admin", "billing"))
	g.GET("/billing/summary", h.BillingSummary)
}

// BillingSummary reports billed/collected/outstanding totals, optionally
// bounded by created_at via from/to query params (RFC 3339).
func (h *Handler) BillingSummary(c echo.Context) error {
	var from, to *time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from")
		}
		from = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to")
		}
		to = &t
	}
	summary, err := h.summarize(c.Request().Context(), from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "report query failed")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) summarize(ctx context.Context, from, to *time.Time) (*BillingSummary, error) {
	var (
		invoiceCount, overdueCount    int64
		billed, collected, overdueAmt int64
	)
	err := h.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(i.total_amount_cents), 0),
			COALESCE(SUM(p.paid_cents), 0),
			COALESCE(SUM(CASE WHEN i.status = 'overdue' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN i.status = 'overdue'
				THEN GREATEST(i.total_amount_cents - p.paid_cents, 0) ELSE 0 END), 0)
		FROM invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount_cents) AS paid_cents
			FROM payments WHERE status = 'completed' GROUP BY invoice_id
		) p ON p.invoice_id = i.id
		WHERE ($1::timestamptz IS NULL OR i.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR i.created_at <= $2)`,
		from, to).
		Scan(&invoiceCount, &billed, &collected, &overdueCount, &overdueAmt)
	if err != nil {
		return nil, err
	}
	outstanding := billed - collected
	if outstanding < 0 {
		outstanding = 0
	}
	return &BillingSummary{
		From:             from,
		To:               to,
		InvoiceCount:     invoiceCount,
		TotalBilled:      formatCents(billed),
		TotalCollected:   formatCents(collected),
		TotalOutstanding: formatCents(outstanding),
		OverdueCount:     overdueCount,
		OverdueAmount:    formatCents(overdueAmt),
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
