// Package notification renders the center's Spanish message templates and
// dispatches them to families after a short simulated delay, keeping an
// in-memory log of every message and its delivery status.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Built-in template IDs.
const (
	TemplateAppointmentCreated   = "turno-creado"
	TemplateAppointmentConfirmed = "turno-confirmado"
	TemplateAppointmentCancelled = "turno-cancelado"
	TemplateAppointmentReminder  = "recordatorio-turno"
	TemplateReportAvailable      = "informe-disponible"
)

// Delivery status values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

// Notification represents a single outbound message.
type Notification struct {
	ID           string            `json:"id"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender Interfaces
// ---------------------------------------------------------------------------

// EmailSender delivers a rendered message to one address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Publisher receives every notification once its delivery settles.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateAppointmentCreated,
			Name:    "Turno creado",
			Subject: "Nuevo turno para {{paciente}}",
			Body:    "Hola {{tutor}}, registramos un turno de {{especialidad}} para {{paciente}} el {{fecha}} a las {{hora}} con {{profesional}}. El turno queda pendiente de confirmación.",
		},
		{
			ID:      TemplateAppointmentConfirmed,
			Name:    "Turno confirmado",
			Subject: "Turno confirmado para {{paciente}}",
			Body:    "Hola {{tutor}}, confirmamos el turno de {{especialidad}} de {{paciente}} el {{fecha}} a las {{hora}} con {{profesional}}.",
		},
		{
			ID:      TemplateAppointmentCancelled,
			Name:    "Turno cancelado",
			Subject: "Turno cancelado para {{paciente}}",
			Body:    "Hola {{tutor}}, el turno de {{paciente}} del {{fecha}} a las {{hora}} con {{profesional}} fue cancelado. Motivo: {{motivo}}.",
		},
		{
			ID:      TemplateAppointmentReminder,
			Name:    "Recordatorio de turno",
			Subject: "Recordatorio: turno de {{paciente}} mañana",
			Body:    "Hola {{tutor}}, te recordamos que {{paciente}} tiene turno de {{especialidad}} el {{fecha}} a las {{hora}} con {{profesional}}.",
		},
		{
			ID:      TemplateReportAvailable,
			Name:    "Informe disponible",
			Subject: "Nuevo informe de {{paciente}}",
			Body:    "Hola {{tutor}}, ya está disponible en el portal el informe de {{especialidad}} de {{paciente}} elaborado por {{profesional}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map in a single pass, so substituted values are never
// expanded again. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", apperr.Validation("template %q not found", templateID)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", data[k])
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// ErrClosed is returned by Enqueue once the Manager has been closed.
var ErrClosed = apperr.Conflict("notification manager is closed")

// Manager stores notifications and dispatches them in the background.
type Manager struct {
	email     EmailSender
	publisher Publisher
	templates *TemplateEngine
	delay     time.Duration
	logger    zerolog.Logger

	mu            sync.RWMutex
	notifications map[string]*Notification
	inflight      sync.WaitGroup
	done          chan struct{}
	closeOnce     sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher forwards every settled notification to p.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithDelay sets the simulated delay before a notification is sent.
func WithDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// NewManager constructs a Manager delivering through email.
func NewManager(email EmailSender, tpl *TemplateEngine, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		email:         email,
		templates:     tpl,
		logger:        logger.With().Str("component", "notification").Logger(),
		notifications: make(map[string]*Notification),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue renders a template and schedules its delivery. It returns as soon
// as the notification is stored; delivery happens after the configured
// delay. A notification without recipient is stored as failed.
func (m *Manager) Enqueue(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	n := &Notification{
		ID:           uuid.New().String(),
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if strings.TrimSpace(recipient) == "" {
		n.Status = StatusFailed
		n.Error = "no recipient"
	}

	m.mu.Lock()
	select {
	case <-m.done:
		m.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	m.notifications[n.ID] = n
	if n.Status == StatusPending {
		m.inflight.Add(1)
	}
	m.mu.Unlock()

	if n.Status == StatusPending {
		go m.dispatch(n.ID)
	}
	return m.snapshot(n), nil
}

func (m *Manager) dispatch(id string) {
	defer m.inflight.Done()

	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		select {
		case <-t.C:
		case <-m.done:
			t.Stop()
		}
	}
	// Dispatch outlives the request that enqueued it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.deliver(ctx, id)
}

func (m *Manager) deliver(ctx context.Context, id string) error {
	m.mu.RLock()
	n, ok := m.notifications[id]
	var to, subject, body string
	if ok {
		to, subject, body = n.Recipient, n.Subject, n.Body
	}
	m.mu.RUnlock()
	if !ok {
		return apperr.NotFound("notification %q not found", id)
	}

	sendErr := m.email.SendEmail(ctx, to, subject, body)

	m.mu.Lock()
	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	settled := *n
	m.mu.Unlock()

	log := m.logger.Info()
	if sendErr != nil {
		log = m.logger.Warn().Err(sendErr)
	}
	log.Str("notification_id", id).Str("template", settled.TemplateID).Str("status", settled.Status).Msg("notification dispatched")

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, settled); err != nil {
			m.logger.Error().Err(err).Str("notification_id", id).Msg("failed to publish notification event")
		}
	}
	return sendErr
}

// Wait blocks until every scheduled delivery has settled.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Close cuts pending delays short, delivers what is queued and waits for it.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		close(m.done)
		m.mu.Unlock()
	})
	m.inflight.Wait()
}

// Get retrieves a notification by ID.
func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, apperr.NotFound("notification %q not found", id)
	}
	c := *n
	return &c, nil
}

// List returns the most recent notifications first, optionally filtered by
// recipient, up to limit.
func (m *Manager) List(_ context.Context, recipient string, limit int) []*Notification {
	m.mu.RLock()
	result := make([]*Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		if recipient == "" || n.Recipient == recipient {
			c := *n
			result = append(result, &c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Retry re-sends a failed notification synchronously.
func (m *Manager) Retry(ctx context.Context, id string) error {
	n, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != StatusFailed {
		return apperr.Conflict("notification %q is not in failed status (current: %s)", id, n.Status)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return apperr.Validation("notification %q has no recipient", id)
	}
	return m.deliver(ctx, id)
}

// Stats returns counts of notifications grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}

func (m *Manager) snapshot(n *Notification) *Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *n
	return &c
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the notification log over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes registers the notification routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.GET("/notifications", h.HandleList)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	n, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=...&limit=...
func (h *Handler) HandleList(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
		}
		limit = n
	}
	return c.JSON(http.StatusOK, h.manager.List(c.Request().Context(), c.QueryParam("recipient"), limit))
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Retry(c.Request().Context(), id); err != nil && !isDeliveryError(err) {
		return apperr.HTTP(err)
	}
	n, err := h.manager.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}

// isDeliveryError reports whether err came from the sender rather than from
// the lookup or state checks. The notification then carries the failure.
func isDeliveryError(err error) bool {
	return !errors.Is(err, apperr.ErrNotFound) &&
		!errors.Is(err, apperr.ErrConflict) &&
		!errors.Is(err, apperr.ErrValidation)
}
