package contact

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/pkg/pagination"
)

func TestHandler_Submit(t *testing.T) {
	h, e := NewHandler(NewService(newMockRepo(), zerolog.Nop())), echo.New()
	body := `{"name":"Asha Rao","email":"asha@example.com","message":"Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Submit(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Submit_BadRequest(t *testing.T) {
	h, e := NewHandler(NewService(newMockRepo(), zerolog.Nop())), echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Asha Rao"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.Submit(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	svc.Submit(context.Background(), validSubmit())
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?handled=false", nil).WithContext(adminCtx())
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List: %v", err)
	}
	var resp pagination.Response
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Total)
	}

	req = httptest.NewRequest(http.MethodGet, "/?handled=maybe", nil).WithContext(adminCtx())
	err := h.List(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_MarkHandled(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	m, _ := svc.Submit(context.Background(), validSubmit())
	h, e := NewHandler(svc), echo.New()

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"ok", m.ID.String(), http.StatusOK},
		{"invalid id", "abc", http.StatusBadRequest},
		{"missing", "00000000-0000-0000-0000-000000000001", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", nil).WithContext(adminCtx())
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			err := h.MarkHandled(c)
			code := rec.Code
			if httpErr, ok := err.(*echo.HTTPError); ok {
				code = httpErr.Code
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}
