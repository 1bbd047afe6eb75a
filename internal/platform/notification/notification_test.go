package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type emailCall struct {
	To      string
	Subject string
	Body    string
}

type mockEmailSender struct {
	mu         sync.Mutex
	calls      []emailCall
	shouldFail bool
}

func (m *mockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, emailCall{To: to, Subject: subject, Body: body})
	if m.shouldFail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (m *mockEmailSender) setFail(v bool) {
	m.mu.Lock()
	m.shouldFail = v
	m.mu.Unlock()
}

func (m *mockEmailSender) Calls() []emailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]emailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type mockPublisher struct {
	mu     sync.Mutex
	events []Notification
}

func (p *mockPublisher) Publish(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
	return nil
}

func newTestManager(sender *mockEmailSender, opts ...Option) *Manager {
	return NewManager(sender, NewTemplateEngine(), zerolog.Nop(), opts...)
}

var appointmentData = map[string]string{
	"tutor":        "Carla",
	"paciente":     "Tomás Gómez",
	"especialidad": "Fonoaudiología",
	"profesional":  "Laura Sosa",
	"fecha":        "15/03/2024",
	"hora":         "09:00",
}

// ---------------------------------------------------------------------------
// Template Engine Tests
// ---------------------------------------------------------------------------

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hola {{nombre}}",
		Body:    "Estimada {{nombre}}, su código es {{codigo}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"nombre": "Alicia",
		"codigo": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hola Alicia" {
		t.Errorf("subject = %q, want %q", subject, "Hola Alicia")
	}
	if body != "Estimada Alicia, su código es 1234." {
		t.Errorf("body = %q", body)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	_, _, err := eng.Render("nonexistent", nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for missing template, got %v", err)
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	for _, id := range []string{
		TemplateAppointmentCreated,
		TemplateAppointmentConfirmed,
		TemplateAppointmentCancelled,
		TemplateAppointmentReminder,
		TemplateReportAvailable,
	} {
		subject, body, err := eng.Render(id, appointmentData)
		if err != nil {
			t.Errorf("template %q: unexpected error: %v", id, err)
			continue
		}
		if !strings.Contains(subject, "Tomás Gómez") {
			t.Errorf("template %q: subject %q does not name the patient", id, subject)
		}
		if strings.Contains(body, "{{tutor}}") || strings.Contains(body, "{{paciente}}") {
			t.Errorf("template %q: placeholders left in body %q", id, body)
		}
	}
}

func TestTemplateEngine_RenderMissingKey(t *testing.T) {
	eng := NewTemplateEngine()
	_, body, err := eng.Render(TemplateAppointmentCancelled, map[string]string{"paciente": "Tomás"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{motivo}}") {
		t.Errorf("expected unfilled placeholder to remain, got %q", body)
	}
}

func TestTemplateEngine_RenderDoesNotExpandValues(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{ID: "nested", Subject: "{{hora}}", Body: "Hola {{tutor}}, turno a las {{hora}}."})
	data := map[string]string{"tutor": "{{hora}}", "hora": "10:00"}

	for i := 0; i < 20; i++ {
		subject, body, err := eng.Render("nested", data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if subject != "10:00" || body != "Hola {{hora}}, turno a las 10:00." {
			t.Fatalf("render %d: subject %q body %q", i, subject, body)
		}
	}
}

// ---------------------------------------------------------------------------
// Manager Tests
// ---------------------------------------------------------------------------

func TestManager_EnqueueDispatchesAfterDelay(t *testing.T) {
	sender := &mockEmailSender{}
	pub := &mockPublisher{}
	mgr := newTestManager(sender, WithDelay(20*time.Millisecond), WithPublisher(pub))

	n, err := mgr.Enqueue(context.Background(), TemplateAppointmentCreated, appointmentData, "carla@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != StatusPending {
		t.Errorf("expected pending right after enqueue, got %s", n.Status)
	}
	if len(sender.Calls()) != 0 {
		t.Error("expected no delivery before the delay elapses")
	}

	mgr.Wait()

	got, _ := mgr.Get(context.Background(), n.ID)
	if got.Status != StatusSent || got.SentAt == nil {
		t.Errorf("expected sent with timestamp, got %s", got.Status)
	}
	calls := sender.Calls()
	if len(calls) != 1 || calls[0].To != "carla@example.com" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	if !strings.Contains(calls[0].Body, "Fonoaudiología") {
		t.Errorf("unexpected body %q", calls[0].Body)
	}
	if len(pub.events) != 1 || pub.events[0].Status != StatusSent {
		t.Errorf("expected one sent event, got %+v", pub.events)
	}
}

func TestManager_EnqueueUnknownTemplate(t *testing.T) {
	mgr := newTestManager(&mockEmailSender{})
	if _, err := mgr.Enqueue(context.Background(), "nope", nil, "a@example.com"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestManager_EnqueueWithoutRecipient(t *testing.T) {
	sender := &mockEmailSender{}
	mgr := newTestManager(sender)

	n, err := mgr.Enqueue(context.Background(), TemplateAppointmentReminder, appointmentData, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mgr.Wait()
	if n.Status != StatusFailed || n.Error == "" {
		t.Errorf("expected failed notification, got %+v", n)
	}
	if len(sender.Calls()) != 0 {
		t.Error("expected no delivery attempt")
	}
}

func TestManager_SendFailedThenRetry(t *testing.T) {
	sender := &mockEmailSender{shouldFail: true}
	mgr := newTestManager(sender)
	ctx := context.Background()

	n, _ := mgr.Enqueue(ctx, TemplateAppointmentConfirmed, appointmentData, "carla@example.com")
	mgr.Wait()

	got, _ := mgr.Get(ctx, n.ID)
	if got.Status != StatusFailed || got.Error != "smtp unavailable" {
		t.Fatalf("expected failed, got %+v", got)
	}

	sender.setFail(false)
	if err := mgr.Retry(ctx, n.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ = mgr.Get(ctx, n.ID)
	if got.Status != StatusSent || got.Error != "" {
		t.Errorf("expected sent after retry, got %+v", got)
	}

	if err := mgr.Retry(ctx, n.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict retrying a sent notification, got %v", err)
	}
}

func TestManager_GetNotFound(t *testing.T) {
	mgr := newTestManager(&mockEmailSender{})
	if _, err := mgr.Get(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestManager_ListAndStats(t *testing.T) {
	sender := &mockEmailSender{}
	mgr := newTestManager(sender)
	ctx := context.Background()

	mgr.Enqueue(ctx, TemplateAppointmentCreated, appointmentData, "a@example.com")
	mgr.Enqueue(ctx, TemplateAppointmentCreated, appointmentData, "b@example.com")
	mgr.Enqueue(ctx, TemplateAppointmentReminder, appointmentData, "a@example.com")
	mgr.Enqueue(ctx, TemplateAppointmentReminder, appointmentData, "")
	mgr.Wait()

	if got := mgr.List(ctx, "a@example.com", 10); len(got) != 2 {
		t.Errorf("expected 2 for recipient a, got %d", len(got))
	}
	if got := mgr.List(ctx, "", 3); len(got) != 3 {
		t.Errorf("expected limit to cap results at 3, got %d", len(got))
	}
	stats := mgr.Stats(ctx)
	if stats[StatusSent] != 3 || stats[StatusFailed] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestManager_CloseCutsDelayShort(t *testing.T) {
	sender := &mockEmailSender{}
	mgr := newTestManager(sender, WithDelay(time.Hour))

	mgr.Enqueue(context.Background(), TemplateAppointmentCreated, appointmentData, "a@example.com")

	done := make(chan struct{})
	go func() {
		mgr.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if len(sender.Calls()) != 1 {
		t.Errorf("expected queued notification to be delivered on close, got %d calls", len(sender.Calls()))
	}
	mgr.Close()
}

func TestManager_EnqueueAfterClose(t *testing.T) {
	sender := &mockEmailSender{}
	mgr := newTestManager(sender)
	mgr.Close()

	_, err := mgr.Enqueue(context.Background(), TemplateAppointmentCreated, appointmentData, "a@example.com")
	if !errors.Is(err, ErrClosed) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if list := mgr.List(context.Background(), "", 0); len(list) != 0 {
		t.Errorf("expected nothing stored after close, got %d", len(list))
	}
	if len(sender.Calls()) != 0 {
		t.Errorf("expected no sends after close, got %d", len(sender.Calls()))
	}
}

func TestManager_ConcurrentEnqueue(t *testing.T) {
	sender := &mockEmailSender{}
	mgr := newTestManager(sender)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Enqueue(context.Background(), TemplateAppointmentReminder, appointmentData, "a@example.com")
		}()
	}
	wg.Wait()
	mgr.Wait()

	if len(sender.Calls()) != 25 {
		t.Errorf("expected 25 deliveries, got %d", len(sender.Calls()))
	}
}

// ---------------------------------------------------------------------------
// Handler Tests
// ---------------------------------------------------------------------------

func TestHandler_List(t *testing.T) {
	mgr := newTestManager(&mockEmailSender{})
	mgr.Enqueue(context.Background(), TemplateAppointmentCreated, appointmentData, "a@example.com")
	mgr.Wait()
	h := NewHandler(mgr)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notifications?recipient=a@example.com", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleList(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var list []Notification
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 || list[0].TemplateID != TemplateAppointmentCreated {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestHandler_ListInvalidLimit(t *testing.T) {
	h := NewHandler(newTestManager(&mockEmailSender{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notifications?limit=abc", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.HandleList(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h := NewHandler(newTestManager(&mockEmailSender{}))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.HandleGet(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_RetryStillFailing(t *testing.T) {
	sender := &mockEmailSender{shouldFail: true}
	mgr := newTestManager(sender)
	n, _ := mgr.Enqueue(context.Background(), TemplateAppointmentCreated, appointmentData, "a@example.com")
	mgr.Wait()
	h := NewHandler(mgr)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(n.ID)

	if err := h.HandleRetry(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Notification
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusFailed {
		t.Errorf("expected failed status in body, got %s", got.Status)
	}
	if len(sender.Calls()) != 2 {
		t.Errorf("expected a second delivery attempt, got %d", len(sender.Calls()))
	}
}

func TestLogSender(t *testing.T) {
	var buf strings.Builder
	s := NewLogSender(zerolog.New(&buf))
	if err := s.SendEmail(context.Background(), "a@example.com", "Asunto", "Cuerpo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"to":"a@example.com"`) {
		t.Errorf("unexpected log output %s", buf.String())
	}
}

func TestNewSendGridSender_InvalidFrom(t *testing.T) {
	if _, err := NewSendGridSender("key", "not an address"); err == nil {
		t.Error("expected error for invalid from address")
	}
	if _, err := NewSendGridSender("key", "Centro <turnos@example.com>"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
