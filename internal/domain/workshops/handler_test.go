package workshops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(t)
	return NewHandler(f.svc), f, echo.New()
}

func TestHandler_CreateWorkshop(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"name":"Taller de lectura","professional_ids":["` + f.professional.ID.String() +
		`"],"weekday":2,"start":"15:00","end":"16:00","capacity":5}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateWorkshop(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var w Workshop
	json.Unmarshal(rec.Body.Bytes(), &w)
	if w.Name != "Taller de lectura" || w.Start.String() != "15:00" || !w.Active {
		t.Errorf("unexpected workshop %+v", w)
	}
}

func TestHandler_EnrollFull(t *testing.T) {
	h, f, e := newTestHandler(t)
	w := f.workshop(t, 1)
	a, b := f.patient(t, "A"), f.patient(t, "B")

	enroll := func(patientID string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient_id":"`+patientID+`"}`))
		req.Header.Set("Content-Type", "application/json")
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(w.ID.String())
		return h.Enroll(c)
	}

	if err := enroll(a.ID.String()); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	err := enroll(b.ID.String())
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_Unenroll_BadPatientID(t *testing.T) {
	h, f, e := newTestHandler(t)
	w := f.workshop(t, 1)

	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id", "patient_id")
	c.SetParamValues(w.ID.String(), "nope")

	err := h.Unenroll(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ListWorkshops(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.workshop(t, 3)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?active=true&professional_id="+f.professional.ID.String(), nil), rec)
	if err := h.ListWorkshops(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 workshop, got %d", resp.Total)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?patient_id=bad", nil), httptest.NewRecorder())
	err := h.ListWorkshops(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
