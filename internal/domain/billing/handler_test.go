package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewHandler(f.svc), echo.New(), f
}

func TestHandlerCreateInvoice(t *testing.T) {
	h, e, f := newTestHandler(t)
	body := `{
		"party_id": "` + f.patient.ID.String() + `",
		"payment_method": "cash",
		"invoice_type": "consultation",
		"items": [
			{"description": "Consultation", "quantity": 1, "unit_price": "50.00"},
			{"description": "Dressing kit", "quantity": 2, "unit_price": "12.50", "total_price": "25.00"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp invoiceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalAmount != "75.00" {
		t.Errorf("total_amount = %q, want 75.00", resp.TotalAmount)
	}
	if resp.Balance != "75.00" {
		t.Errorf("balance = %q, want 75.00", resp.Balance)
	}
	if resp.Status != StatusPending {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.InvoiceNumber == "" {
		t.Error("invoice_number missing")
	}
}

func TestHandlerCreateInvoiceBadAmount(t *testing.T) {
	h, e, f := newTestHandler(t)
	for _, price := range []string{"50.005", "-10.00", "0", "abc"} {
		body := `{
			"party_id": "` + f.patient.ID.String() + `",
			"payment_method": "cash",
			"items": [{"description": "Consultation", "quantity": 1, "unit_price": "` + price + `"}]
		}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.CreateInvoice(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Errorf("unit_price %q: expected 400, got %v", price, err)
		}
	}
}

func TestHandlerGetInvoiceNotFound(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetInvoice(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandlerRecordPayment(t *testing.T) {
	h, e, f := newTestHandler(t)
	inv := f.createInvoice(t,
		NewItemInput{Description: "Treatment", Quantity: 1, UnitPriceCents: 10000})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"40.00","method":"card"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.RecordPayment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp paymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Amount != "40.00" || resp.Status != PaymentCompleted {
		t.Errorf("payment response = %q/%q", resp.Amount, resp.Status)
	}

	got, _ := f.svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != StatusPartiallyPaid {
		t.Errorf("invoice status = %q", got.Status)
	}
}

func TestHandlerRemoveLastItemConflict(t *testing.T) {
	h, e, f := newTestHandler(t)
	inv := f.createInvoice(t)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "itemID")
	c.SetParamValues(inv.ID.String(), inv.Items[0].ID.String())

	err := h.RemoveItem(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandlerListInvoicesBadOrder(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/?order=sideways", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListInvoices(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
