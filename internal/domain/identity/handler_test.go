package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
)

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withUser(req *http.Request, s auth.Session) *http.Request {
	return req.WithContext(auth.WithSession(req.Context(), s))
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func TestHandler_SignUp(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost,
		`{"email":"doc@example.com","password":"passw0rd","display_name":"Dr Mehta","role":"doctor"}`), rec)
	if err := h.SignUp(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var res AuthResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Redirect != "/doctor" || res.Token == "" {
		t.Errorf("unexpected result: %+v", res)
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("password hash must not be serialized")
	}
}

func TestHandler_SignUp_BadRequest(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()

	c := e.NewContext(jsonRequest(http.MethodPost, `{"email":"bad","password":"passw0rd","display_name":"X Y"}`),
		httptest.NewRecorder())
	expectStatus(t, h.SignUp(c), http.StatusBadRequest)
}

func TestHandler_SignIn_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "u@example.com", "")
	h := NewHandler(env.svc)
	e := echo.New()

	body := `{"email":"u@example.com","password":"wrong123"}`
	for i := 0; i < 3; i++ {
		c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())
		expectStatus(t, h.SignIn(c), http.StatusUnauthorized)
	}
	c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())
	expectStatus(t, h.SignIn(c), http.StatusTooManyRequests)
}

func TestHandler_MeAndLogout(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "u@example.com", "")
	claims, _ := env.tokens.Parse(res.Token)
	sess, _ := env.sessions.Get(context.Background(), claims.SessionID)
	h := NewHandler(env.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(withUser(httptest.NewRequest(http.MethodGet, "/", nil), *sess), rec)
	if err := h.Me(c); err != nil {
		t.Fatalf("me: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "u@example.com") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(withUser(httptest.NewRequest(http.MethodPost, "/", nil), *sess), rec)
	if err := h.Logout(c); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if env.sessions.Count() != 0 {
		t.Errorf("expected no sessions, got %d", env.sessions.Count())
	}
}

func TestHandler_Me_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	expectStatus(t, h.Me(c), http.StatusUnauthorized)
}

func TestHandler_ChangeRole(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "u@example.com", "")
	h := NewHandler(env.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, `{"role":"doctor"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(res.User.ID.String())
	if err := h.ChangeRole(c); err != nil {
		t.Fatalf("change role: %v", err)
	}
	var u User
	json.Unmarshal(rec.Body.Bytes(), &u)
	if u.Role != auth.RoleDoctor || u.DoctorCode == nil {
		t.Errorf("unexpected user: %+v", u)
	}

	c = e.NewContext(jsonRequest(http.MethodPut, `{"role":"root"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(res.User.ID.String())
	expectStatus(t, h.ChangeRole(c), http.StatusBadRequest)

	c = e.NewContext(jsonRequest(http.MethodPut, `{"role":"user"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectStatus(t, h.ChangeRole(c), http.StatusBadRequest)
}

func TestHandler_ListDoctors_Empty(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.ListDoctors(c); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_SetDoctorCode(t *testing.T) {
	env := newTestEnv(t)
	first := env.signUp(t, "ravi@clinic.test", auth.RoleDoctor)
	second := env.signUp(t, "anil@clinic.test", auth.RoleDoctor)
	h := NewHandler(env.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, `{"doctor_code":"DOC042"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(first.User.ID.String())
	if err := h.SetDoctorCode(c); err != nil {
		t.Fatalf("set doctor code: %v", err)
	}
	var u User
	json.Unmarshal(rec.Body.Bytes(), &u)
	if u.DoctorCode == nil || *u.DoctorCode != "DOC042" {
		t.Errorf("unexpected user: %+v", u)
	}

	c = e.NewContext(jsonRequest(http.MethodPut, `{"doctor_code":"DOC042"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(second.User.ID.String())
	expectStatus(t, h.SetDoctorCode(c), http.StatusConflict)

	c = e.NewContext(jsonRequest(http.MethodPut, `{"doctor_code":""}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(second.User.ID.String())
	expectStatus(t, h.SetDoctorCode(c), http.StatusBadRequest)
}
