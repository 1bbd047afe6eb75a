package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/notification"
)

// Directory resolves the people an appointment refers to.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*identity.Professional, error)
}

// Notifier queues a templated message to a family.
type Notifier interface {
	Enqueue(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	appointments AppointmentRepository
	directory    Directory
	notifier     Notifier
	logger       zerolog.Logger
}

// NewService builds the scheduling service. notifier may be nil, in which
// case no messages are sent.
func NewService(appointments AppointmentRepository, directory Directory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		directory:    directory,
		notifier:     notifier,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil || a.ProfessionalID == uuid.Nil {
		return apperr.Validation("patient_id and professional_id are required")
	}
	if a.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	if a.Start.IsZero() || a.End.IsZero() {
		return apperr.Validation("start and end are required")
	}
	if !a.Start.Before(a.End) {
		return apperr.Validation("start %s must be before end %s", a.Start, a.End)
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return apperr.Validation("new appointments must be pending or confirmed, got %q", a.Status)
	}

	patient, err := s.directory.GetPatient(ctx, a.PatientID)
	if err != nil {
		return err
	}
	if !patient.Active {
		return apperr.Validation("patient %s is inactive", a.PatientID)
	}
	professional, err := s.directory.GetProfessional(ctx, a.ProfessionalID)
	if err != nil {
		return err
	}
	if !professional.Active {
		return apperr.Validation("professional %s is inactive", a.ProfessionalID)
	}

	a.CancellationReason = ""
	if err := s.appointments.Create(ctx, a); err != nil {
		return err
	}

	tpl := notification.TemplateAppointmentCreated
	if a.Status == StatusConfirmed {
		tpl = notification.TemplateAppointmentConfirmed
	}
	s.notify(ctx, tpl, a, patient, professional)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateStatus moves an appointment along its lifecycle. reason is recorded
// when the appointment is cancelled.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid appointment status: %s", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, status) {
		return nil, apperr.Conflict("cannot change appointment status from %s to %s", a.Status, status)
	}

	a.Status = status
	if status == StatusCancelled {
		a.CancellationReason = strings.TrimSpace(reason)
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}

	switch status {
	case StatusConfirmed:
		s.notifyAppointment(ctx, notification.TemplateAppointmentConfirmed, a)
	case StatusCancelled:
		s.notifyAppointment(ctx, notification.TemplateAppointmentCancelled, a)
	}
	return a, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Notes = notes
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	for _, st := range f.Statuses {
		if !validStatuses[st] {
			return nil, 0, apperr.Validation("invalid appointment status: %s", st)
		}
	}
	return s.appointments.Search(ctx, f, limit, offset)
}

// Calendar returns the grid for the view containing ref, optionally limited
// to one professional's appointments.
func (s *Service) Calendar(ctx context.Context, ref calendar.Date, mode calendar.ViewMode, professionalID *uuid.UUID) (calendar.Grid[Appointment], error) {
	first, last := calendar.Range(ref, mode)
	found, _, err := s.appointments.Search(ctx, Filter{ProfessionalID: professionalID, From: first, To: last}, 0, 0)
	if err != nil {
		return calendar.Grid[Appointment]{}, err
	}
	items := make([]Appointment, len(found))
	for i, a := range found {
		items[i] = *a
	}
	return calendar.Build(ref, mode, items), nil
}

// SendReminders queues a reminder for every pending or confirmed appointment
// on day and returns how many were queued.
func (s *Service) SendReminders(ctx context.Context, day calendar.Date) (int, error) {
	due, _, err := s.appointments.Search(ctx, Filter{
		Statuses: []string{StatusPending, StatusConfirmed},
		From:     day,
		To:       day,
	}, 0, 0)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, a := range due {
		if s.notifyAppointment(ctx, notification.TemplateAppointmentReminder, a) {
			sent++
		}
	}
	return sent, nil
}

func (s *Service) notifyAppointment(ctx context.Context, tpl string, a *Appointment) bool {
	if s.notifier == nil {
		return false
	}
	patient, err := s.directory.GetPatient(ctx, a.PatientID)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("cannot notify: patient lookup failed")
		return false
	}
	professional, err := s.directory.GetProfessional(ctx, a.ProfessionalID)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("cannot notify: professional lookup failed")
		return false
	}
	return s.notify(ctx, tpl, a, patient, professional)
}

func (s *Service) notify(ctx context.Context, tpl string, a *Appointment, patient *identity.Patient, professional *identity.Professional) bool {
	if s.notifier == nil {
		return false
	}
	data := map[string]string{
		"tutor":        patient.GuardianName,
		"paciente":     patient.FullName(),
		"profesional":  professional.FullName(),
		"especialidad": professional.Specialty.DisplayName(),
		"fecha":        a.Date.Time().Format("02/01/2006"),
		"hora":         a.Start.String(),
		"motivo":       a.CancellationReason,
	}
	if data["tutor"] == "" {
		data["tutor"] = "familia"
	}
	if data["motivo"] == "" {
		data["motivo"] = "sin especificar"
	}
	if _, err := s.notifier.Enqueue(ctx, tpl, data, patient.GuardianEmail); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Str("template", tpl).Msg("failed to queue notification")
		return false
	}
	return true
}
