package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/calendar"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	h.today = func() calendar.Date { return mustDate(t, "2024-03-15") }
	return h, f, echo.New()
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","professional_id":"` + f.professional.ID.String() +
		`","date":"2024-03-15","start":"9:00","end":"09:45"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.Start.String() != "09:00" || a.Status != StatusPending {
		t.Errorf("unexpected appointment %+v", a)
	}
}

func TestHandler_CreateAppointment_BadClock(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","professional_id":"` + f.professional.ID.String() +
		`","date":"2024-03-15","start":"9am","end":"10:00"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateAppointment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateStatus_Conflict(t *testing.T) {
	h, f, e := newTestHandler(t)
	a := f.appointment(t, "2024-03-15", "09:00", "10:00")
	f.svc.CreateAppointment(context.Background(), a)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"attended"}`))
	req.Header.Set("Content-Type", "application/json")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.UpdateStatus(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, f, e := newTestHandler(t)
	a := f.appointment(t, "2024-03-15", "09:00", "10:00")
	f.svc.CreateAppointment(context.Background(), a)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"cancelled","reason":"fiebre"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusCancelled || got.CancellationReason != "fiebre" {
		t.Errorf("unexpected appointment %+v", got)
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetAppointment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListAppointments(t *testing.T) {
	h, f, e := newTestHandler(t)
	ctx := context.Background()
	f.svc.CreateAppointment(ctx, f.appointment(t, "2024-03-15", "09:00", "10:00"))
	f.svc.CreateAppointment(ctx, f.appointment(t, "2024-04-15", "09:00", "10:00"))

	req := httptest.NewRequest(http.MethodGet, "/?from=2024-04-01&status=pending,confirmed", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Appointment `json:"data"`
		Total int           `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].Date.String() != "2024-04-15" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_ListAppointments_BadDate(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?from=01/04/2024", nil), httptest.NewRecorder())

	err := h.ListAppointments(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetCalendar_DefaultsToTodayWeek(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.svc.CreateAppointment(context.Background(), f.appointment(t, "2024-03-13", "10:00", "11:00"))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := h.GetCalendar(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var grid struct {
		Mode  string `json:"mode"`
		Start string `json:"start"`
		Cells []struct {
			Date    string            `json:"date"`
			Entries []json.RawMessage `json:"entries"`
		} `json:"cells"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &grid); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if grid.Mode != "week" || grid.Start != "2024-03-11" || len(grid.Cells) != 7 {
		t.Errorf("unexpected grid mode=%s start=%s cells=%d", grid.Mode, grid.Start, len(grid.Cells))
	}
	if len(grid.Cells[2].Entries) != 1 {
		t.Errorf("expected one entry on Wednesday, got %d", len(grid.Cells[2].Entries))
	}
}

func TestHandler_GetCalendar_Month(t *testing.T) {
	h, _, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-03-15&view=mes", nil), rec)

	if err := h.GetCalendar(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var grid struct {
		Cells []json.RawMessage `json:"cells"`
	}
	json.Unmarshal(rec.Body.Bytes(), &grid)
	if len(grid.Cells) != 35 {
		t.Errorf("expected 35 cells, got %d", len(grid.Cells))
	}
}

func TestHandler_GetCalendar_BadView(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?view=year", nil), httptest.NewRecorder())

	err := h.GetCalendar(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
