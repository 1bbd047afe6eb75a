package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(t)
	return NewHandler(f.svc), f, echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandler_Login(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.secretary(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"email":"recepcion@clinica.test","password":"secreto123"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res LoginResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if !res.Success || res.Token == "" || res.User == nil || res.User.Email != "recepcion@clinica.test" {
		t.Errorf("unexpected result %+v", res)
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("password hash leaked into response")
	}
}

func TestHandler_LoginFailureIs401WithBody(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.secretary(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"email":"recepcion@clinica.test","password":"mala"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var res LoginResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Success || res.Message != msgInvalidCredentials {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandler_MeAndLogout(t *testing.T) {
	h, f, e := newTestHandler(t)
	u := f.secretary(t)
	res, _ := f.svc.Login(context.Background(), u.Email, "secreto123", "")
	claims, _ := auth.ParseToken(res.Token, f.jwt)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("claims", claims)

	if err := h.Me(c); err != nil {
		t.Fatalf("me: %v", err)
	}
	var me PublicUser
	json.Unmarshal(rec.Body.Bytes(), &me)
	if me.ID != u.ID {
		t.Errorf("expected %s, got %s", u.ID, me.ID)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set("claims", claims)
	if err := h.Logout(c); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if rec.Code != http.StatusNoContent || !f.revoked.IsRevoked(claims.ID) {
		t.Errorf("expected revoked token and 204, got %d", rec.Code)
	}
}

func TestHandler_MeWithoutAccount(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := h.Me(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_CreateUserConflict(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.secretary(t)

	c := e.NewContext(jsonRequest(http.MethodPost,
		`{"email":"recepcion@clinica.test","password":"secreto123","role":"admin"}`), httptest.NewRecorder())
	err := h.CreateUser(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_ListUsersHidesHashes(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.secretary(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=10", nil), rec)
	if err := h.ListUsers(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(rec.Body.String(), "password_hash") || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
