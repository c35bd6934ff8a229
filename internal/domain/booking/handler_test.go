package booking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/legacy"
	"github.com/healthhub/healthhub/pkg/pagination"
)

func TestHandler_Create(t *testing.T) {
	svc, _ := newTestService(nil, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()
	body := `{"patient_name":"Asha Rao","patient_phone":"9876543210","service_id":"` + consultID.String() +
		`","appointment_date":"2026-03-10","appointment_time":"10:30","total_amount":1}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(patientCtx())
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var b Booking
	json.Unmarshal(rec.Body.Bytes(), &b)
	if b.TotalAmount != 500 {
		t.Errorf("client amount must be ignored, got %v", b.TotalAmount)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	svc, _ := newTestService(nil, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient_name":"Asha"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(patientCtx())

	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	svc, _ := newTestService(nil, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()
	b, _ := svc.CreateBooking(patientCtx(), validRequest())

	tests := []struct {
		name   string
		ctx    func() *http.Request
		status string
		want   int
	}{
		{"patient confirm forbidden", func() *http.Request { return statusReq(`{"status":"confirmed"}`).WithContext(patientCtx()) }, "confirmed", http.StatusForbidden},
		{"invalid transition", func() *http.Request { return statusReq(`{"status":"completed"}`).WithContext(doctorCtx("DOC001")) }, "completed", http.StatusConflict},
		{"unknown status", func() *http.Request { return statusReq(`{"status":"lost"}`).WithContext(doctorCtx("DOC001")) }, "lost", http.StatusBadRequest},
		{"doctor confirms", func() *http.Request { return statusReq(`{"status":"confirmed"}`).WithContext(doctorCtx("DOC001")) }, "confirmed", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(tt.ctx(), rec)
			c.SetParamNames("id")
			c.SetParamValues(b.ID.String())
			err := h.UpdateStatus(c)
			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(rec.Body.String(), tt.status) {
					t.Errorf("expected status %s in body", tt.status)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, err)
			}
		})
	}
}

func statusReq(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_ListForDoctor(t *testing.T) {
	store := legacy.NewMemoryStore()
	seedLegacyPair(store)
	svc, _ := newTestService(store, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?status=confirmed", nil).WithContext(doctorCtx("DOC001"))
	rec := httptest.NewRecorder()
	if err := h.ListForDoctor(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var resp pagination.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 booking, got %d", resp.Total)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	svc, _ := newTestService(nil, zerolog.Nop())
	h, e := NewHandler(svc), echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil).WithContext(patientCtx()), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
