package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func jsonReq(ctx context.Context, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(ctx)
}

func TestHandler_InitiateAndVerify(t *testing.T) {
	rentals := newFakePayable()
	id := uuid.New()
	rentals.due[id] = 2700
	svc, _ := newTestService(map[string]Payable{TargetRental: rentals})
	h, e := NewHandler(svc), echo.New()
	ctx := userCtx()

	rec := httptest.NewRecorder()
	body := `{"target_type":"rental","target_id":"` + id.String() + `"}`
	if err := h.Initiate(e.NewContext(jsonReq(ctx, body), rec)); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	var opts CheckoutOptions
	if err := json.Unmarshal(rec.Body.Bytes(), &opts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opts.Amount != 270000 {
		t.Errorf("expected 270000, got %d", opts.Amount)
	}

	rec = httptest.NewRecorder()
	verify := `{"razorpay_order_id":"` + opts.OrderID + `","razorpay_payment_id":"` + opts.MockPaymentID +
		`","razorpay_signature":"` + opts.MockSignature + `"}`
	if err := h.Verify(e.NewContext(jsonReq(ctx, verify), rec)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if _, ok := rentals.paid[id]; !ok {
		t.Error("expected rental marked paid")
	}
}

func TestHandler_Verify_Errors(t *testing.T) {
	svc, _ := newTestService(nil)
	h, e := NewHandler(svc), echo.New()

	tests := []struct {
		name string
		body string
	}{
		{"missing fields", `{"razorpay_order_id":"order_1"}`},
		{"bad signature", `{"razorpay_order_id":"order_mock_1","razorpay_payment_id":"pay_1","razorpay_signature":"abc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Verify(e.NewContext(jsonReq(userCtx(), tt.body), httptest.NewRecorder()))
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}

func TestHandler_Initiate_Unauthenticated(t *testing.T) {
	svc, _ := newTestService(map[string]Payable{TargetBooking: newFakePayable()})
	h, e := NewHandler(svc), echo.New()
	body := `{"target_type":"booking","target_id":"` + uuid.NewString() + `"}`

	err := h.Initiate(e.NewContext(jsonReq(context.Background(), body), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_Initiate_MissingTarget(t *testing.T) {
	svc, _ := newTestService(map[string]Payable{TargetBooking: newFakePayable()})
	h, e := NewHandler(svc), echo.New()
	body := `{"target_type":"booking","target_id":"` + uuid.NewString() + `"}`

	err := h.Initiate(e.NewContext(jsonReq(userCtx(), body), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Cancel(t *testing.T) {
	svc, _ := newTestService(nil)
	h, e := NewHandler(svc), echo.New()
	rec := httptest.NewRecorder()

	if err := h.Cancel(e.NewContext(jsonReq(userCtx(), `{"order_id":"order_mock_1"}`), rec)); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["cancelled"] != true {
		t.Errorf("expected cancelled=true, got %v", resp)
	}
}

func TestHandler_Config(t *testing.T) {
	svc, _ := newTestService(nil)
	h, e := NewHandler(svc), echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if err := h.Config(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Config: %v", err)
	}
	var cfg PublicConfig
	json.Unmarshal(rec.Body.Bytes(), &cfg)
	if cfg.Currency != "INR" || !cfg.MockFallback {
		t.Errorf("unexpected config %+v", cfg)
	}
}
