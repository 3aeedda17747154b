package billing

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "billing"))
	g.POST("/invoices", h.CreateInvoice)
	g.GET("/invoices", h.ListInvoices)
	g.GET("/invoices/:id", h.GetInvoice)
	g.PATCH("/invoices/:id", h.UpdateInvoice)
	g.POST("/invoices/:id/items", h.AddItem)
	g.PATCH("/invoices/:id/items/:itemID", h.UpdateItem)
	g.DELETE("/invoices/:id/items/:itemID", h.RemoveItem)
	g.POST("/invoices/:id/payments", h.RecordPayment)
	g.GET("/invoices/:id/payments", h.ListPayments)
	g.POST("/invoices/:id/status/recompute", h.RecomputeStatus)
}

// httpError translates domain sentinels into HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// -- Request/response shapes --
//
// Amounts cross the wire as decimal strings ("50.00"); cents stay internal.

type itemRequest struct {
	ServiceCode *string `json:"service_code"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	TotalPrice  *string `json:"total_price"`
}

func (r itemRequest) toInput() (NewItemInput, error) {
	in := NewItemInput{
		ServiceCode: r.ServiceCode,
		Description: r.Description,
		Quantity:    r.Quantity,
	}
	unit, err := ParseAmount(r.UnitPrice)
	if err != nil {
		return in, err
	}
	in.UnitPriceCents = unit
	if r.TotalPrice != nil {
		total, err := ParseAmount(*r.TotalPrice)
		if err != nil {
			return in, err
		}
		in.TotalPriceCents = &total
	}
	return in, nil
}

type createInvoiceRequest struct {
	PartyID       uuid.UUID     `json:"party_id"`
	AppointmentID *uuid.UUID    `json:"appointment_id"`
	PreparedBy    *string       `json:"prepared_by"`
	PaymentMethod string        `json:"payment_method"`
	InvoiceType   string        `json:"invoice_type"`
	DueDate       *time.Time    `json:"due_date"`
	Items         []itemRequest `json:"items"`
}

type updateInvoiceRequest struct {
	PaymentMethod *string    `json:"payment_method"`
	InvoiceType   *string    `json:"invoice_type"`
	DueDate       *time.Time `json:"due_date"`
	PreparedBy    *string    `json:"prepared_by"`
}

type updateItemRequest struct {
	ServiceCode *string `json:"service_code"`
	Description *string `json:"description"`
	Quantity    *int    `json:"quantity"`
	UnitPrice   *string `json:"unit_price"`
}

type paymentRequest struct {
	Amount        string     `json:"amount"`
	Method        string     `json:"method"`
	TransactionID *string    `json:"transaction_id"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes"`
	PaidAt        *time.Time `json:"paid_at"`
}

type itemResponse struct {
	ID          uuid.UUID `json:"id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	ServiceCode *string   `json:"service_code,omitempty"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	TotalPrice  string    `json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`
}

func newItemResponse(it *InvoiceItem) itemResponse {
	return itemResponse{
		ID:          it.ID,
		InvoiceID:   it.InvoiceID,
		ServiceCode: it.ServiceCode,
		Description: it.Description,
		Quantity:    it.Quantity,
		UnitPrice:   FormatCents(it.UnitPriceCents),
		TotalPrice:  FormatCents(it.TotalPriceCents),
		CreatedAt:   it.CreatedAt,
	}
}

type invoiceResponse struct {
	ID            uuid.UUID      `json:"id"`
	InvoiceNumber string         `json:"invoice_number"`
	PartyID       uuid.UUID      `json:"party_id"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
	PreparedBy    *string        `json:"prepared_by,omitempty"`
	TotalAmount   string         `json:"total_amount"`
	AmountPaid    string         `json:"amount_paid"`
	Balance       string         `json:"balance"`
	PaymentMethod string         `json:"payment_method"`
	Status        string         `json:"status"`
	InvoiceType   string         `json:"invoice_type"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Items         []itemResponse `json:"items,omitempty"`
}

func newInvoiceResponse(inv *Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PartyID:       inv.PartyID,
		AppointmentID: inv.AppointmentID,
		PreparedBy:    inv.PreparedBy,
		TotalAmount:   FormatCents(inv.TotalAmountCents),
		AmountPaid:    FormatCents(inv.PaidCents),
		Balance:       FormatCents(inv.OwedCents),
		PaymentMethod: inv.PaymentMethod,
		Status:        inv.Status,
		InvoiceType:   inv.InvoiceType,
		DueDate:       inv.DueDate,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	for _, it := range inv.Items {
		resp.Items = append(resp.Items, newItemResponse(it))
	}
	return resp
}

type paymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	Amount        string     `json:"amount"`
	Method        string     `json:"method"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes,omitempty"`
	PaidAt        time.Time  `json:"paid_at"`
	RecordedBy    *uuid.UUID `json:"recorded_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newPaymentResponse(p *Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		Amount:        FormatCents(p.AmountCents),
		Method:        p.Method,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		Notes:         p.Notes,
		PaidAt:        p.PaidAt,
		RecordedBy:    p.RecordedBy,
		CreatedAt:     p.CreatedAt,
	}
}

// -- Handlers --

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in := NewInvoiceInput{
		PartyID:       req.PartyID,
		AppointmentID: req.AppointmentID,
		PreparedBy:    req.PreparedBy,
		PaymentMethod: req.PaymentMethod,
		InvoiceType:   req.InvoiceType,
		DueDate:       req.DueDate,
	}
	for _, ir := range req.Items {
		item, err := ir.toInput()
		if err != nil {
			return httpError(err)
		}
		in.Items = append(in.Items, item)
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, newInvoiceResponse(inv))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f ListFilter
	if v := c.QueryParam("party_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid party_id")
		}
		f.PartyID = &pid
	}
	f.Status = c.QueryParam("status")
	f.InvoiceType = c.QueryParam("type")
	if v := c.QueryParam("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid created_from")
		}
		f.CreatedFrom = &t
	}
	if v := c.QueryParam("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid created_to")
		}
		f.CreatedTo = &t
	}
	f.SortBy = c.QueryParam("sort")
	switch c.QueryParam("order") {
	case "asc", "":
	case "desc":
		f.SortDesc = true
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "order must be asc or desc")
	}
	reconcile := c.QueryParam("reconcile_status") == "true"

	invoices, total, err := h.svc.ListInvoices(c.Request().Context(), f, pg.Limit, pg.Offset, reconcile)
	if err != nil {
		return httpError(err)
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, newInvoiceResponse(inv))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.UpdateInvoice(c.Request().Context(), id, UpdateInvoiceInput{
		PaymentMethod: req.PaymentMethod,
		InvoiceType:   req.InvoiceType,
		DueDate:       req.DueDate,
		PreparedBy:    req.PreparedBy,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) AddItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in, err := req.toInput()
	if err != nil {
		return httpError(err)
	}
	item, err := h.svc.AddItem(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, newItemResponse(item))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	var req updateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in := UpdateItemInput{
		ServiceCode: req.ServiceCode,
		Description: req.Description,
		Quantity:    req.Quantity,
	}
	if req.UnitPrice != nil {
		unit, err := ParseAmount(*req.UnitPrice)
		if err != nil {
			return httpError(err)
		}
		in.UnitPriceCents = &unit
	}
	item, err := h.svc.UpdateItem(c.Request().Context(), id, itemID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newItemResponse(item))
}

func (h *Handler) RemoveItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	if err := h.svc.RemoveItem(c.Request().Context(), id, itemID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return httpError(err)
	}
	in := NewPaymentInput{
		AmountCents:   amount,
		Method:        req.Method,
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Notes:         req.Notes,
		PaidAt:        req.PaidAt,
	}
	if userID := auth.UserIDFromContext(c.Request().Context()); userID != "" {
		if uid, err := uuid.Parse(userID); err == nil {
			in.RecordedBy = &uid
		}
	}
	p, err := h.svc.RecordPayment(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, newPaymentResponse(p))
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	payments, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, newPaymentResponse(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) RecomputeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status, err := h.svc.RecomputeStatus(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id.String(), "status": status})
}
