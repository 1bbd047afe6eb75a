package reports

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/notification"
)

// Directory resolves the people a report refers to.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*identity.Professional, error)
}

// Notifier queues a templated message to a family.
type Notifier interface {
	Enqueue(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	reports   ReportRepository
	directory Directory
	notifier  Notifier
	blobs     blobstore.BlobStore
	logger    zerolog.Logger
}

// NewService builds the report service. notifier may be nil; blobs may be
// nil, in which case Export always fails.
func NewService(reports ReportRepository, directory Directory, notifier Notifier, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{
		reports:   reports,
		directory: directory,
		notifier:  notifier,
		blobs:     blobs,
		logger:    logger.With().Str("component", "reports").Logger(),
	}
}

// Create stores a new draft. The patient and professional must exist, and
// the technical form must belong to the professional's specialty. A general
// report left blank apart from its additional observations is derived from
// the technical form.
func (s *Service) Create(ctx context.Context, r *Report) error {
	if r.PatientID == uuid.Nil || r.ProfessionalID == uuid.Nil {
		return apperr.Validation("patient_id and professional_id are required")
	}
	if !r.Type.Valid() {
		return apperr.Validation("invalid report type: %q", r.Type)
	}
	if r.Technical.IsZero() {
		return apperr.Validation("technical report is required")
	}

	if _, err := s.directory.GetPatient(ctx, r.PatientID); err != nil {
		return err
	}
	professional, err := s.directory.GetProfessional(ctx, r.ProfessionalID)
	if err != nil {
		return err
	}
	if professional.Specialty != r.Technical.Specialty() {
		return apperr.Validation("a %s professional cannot author a %s report",
			professional.Specialty.DisplayName(), r.Technical.Specialty().DisplayName())
	}

	if r.Interconsult != nil {
		ic, err := newInterconsult(r.Interconsult.Specialties, r.Interconsult.Reason)
		if err != nil {
			return err
		}
		r.Interconsult = ic
	}

	r.Specialty = professional.Specialty
	r.Status = StatusDraft
	r.Version = 1
	r.VisibleToFamily = false
	r.SavedAt = nil
	if r.General.derivable() {
		r.General = DeriveGeneralReport(r.Technical, r.General)
	}
	return s.reports.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.reports.GetByID(ctx, id)
}

// CheckAuthor returns a forbidden error unless professionalID wrote report
// id. With consulted set, a professional of a specialty named in the
// report's interconsult is accepted too.
func (s *Service) CheckAuthor(ctx context.Context, id, professionalID uuid.UUID, consulted bool) error {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.ProfessionalID == professionalID {
		return nil
	}
	if consulted && r.Interconsult != nil {
		p, err := s.directory.GetProfessional(ctx, professionalID)
		if err != nil {
			return err
		}
		for _, sp := range r.Interconsult.Specialties {
			if sp == p.Specialty {
				return nil
			}
		}
	}
	return apperr.Forbidden("report %s belongs to another professional", id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, apperr.Validation("invalid report type: %q", f.Type)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid report status: %q", f.Status)
	}
	return s.reports.Search(ctx, f, limit, offset)
}

// Patch carries the editable parts of a report. Nil fields are left as they
// are.
type Patch struct {
	Type      *ReportType      `json:"type,omitempty"`
	Technical *TechnicalReport `json:"technical,omitempty"`
	General   *GeneralReport   `json:"general,omitempty"`
	Version   int              `json:"version"`
}

// Update edits a draft or saved report. p.Version must match the stored
// version.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Editable(r.Status) {
		return nil, apperr.Conflict("report %s is %s and can no longer be edited", id, r.Status)
	}
	if p.Version != 0 && p.Version != r.Version {
		return nil, apperr.Conflict("report %s is at version %d, not %d", id, r.Version, p.Version)
	}
	if p.Type != nil {
		if !p.Type.Valid() {
			return nil, apperr.Validation("invalid report type: %q", *p.Type)
		}
		r.Type = *p.Type
	}
	if p.Technical != nil {
		if p.Technical.Specialty() != r.Specialty {
			return nil, apperr.Validation("technical report must be %s", r.Specialty.DisplayName())
		}
		r.Technical = *p.Technical
	}
	if p.General != nil {
		r.General = *p.General
	}
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Derive previews the general report for tech without storing anything.
func (s *Service) Derive(tech TechnicalReport, current GeneralReport) (GeneralReport, error) {
	if tech.IsZero() {
		return GeneralReport{}, apperr.Validation("technical report is required")
	}
	return DeriveGeneralReport(tech, current), nil
}

// Save finalizes a draft. A draft carrying an interconsult request moves
// straight to interconsult_pending.
func (s *Service) Save(ctx context.Context, id uuid.UUID) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusDraft {
		return nil, apperr.Conflict("only drafts can be saved, report %s is %s", id, r.Status)
	}
	now := time.Now().UTC()
	r.SavedAt = &now
	r.Status = StatusSaved
	if r.Interconsult != nil {
		r.Status = StatusInterconsultPending
	}
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RequestInterconsult asks other specialties to review a report. On a draft
// the request is recorded and takes effect on Save; a saved report moves to
// interconsult_pending immediately.
func (s *Service) RequestInterconsult(ctx context.Context, id uuid.UUID, specialties []identity.Specialty, reason string) (*Report, error) {
	ic, err := newInterconsult(specialties, reason)
	if err != nil {
		return nil, err
	}
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case StatusDraft:
	case StatusSaved:
		r.Status = StatusInterconsultPending
	default:
		return nil, apperr.Conflict("report %s is %s; an interconsult cannot be requested", id, r.Status)
	}
	r.Interconsult = ic
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ResolveInterconsult records the answer to a pending interconsult.
func (s *Service) ResolveInterconsult(ctx context.Context, id uuid.UUID, response string) (*Report, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, apperr.Validation("response is required")
	}
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusInterconsultPending || r.Interconsult == nil {
		return nil, apperr.Conflict("report %s has no pending interconsult", id)
	}
	now := time.Now().UTC()
	r.Interconsult.Response = response
	r.Interconsult.ResolvedAt = &now
	r.Status = StatusInterconsultResolved
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetVisibility shares or hides a report in the family portal. Drafts are
// never shared. The family is notified when a report becomes visible.
func (s *Service) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if visible && r.Status == StatusDraft {
		return nil, apperr.Conflict("report %s must be saved before it is shared", id)
	}
	if r.VisibleToFamily == visible {
		return r, nil
	}
	r.VisibleToFamily = visible
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	if visible {
		s.notifyAvailable(ctx, r)
	}
	return r, nil
}

func (s *Service) notifyAvailable(ctx context.Context, r *Report) {
	if s.notifier == nil {
		return
	}
	patient, err := s.directory.GetPatient(ctx, r.PatientID)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", r.ID.String()).Msg("cannot notify: patient lookup failed")
		return
	}
	professional, err := s.directory.GetProfessional(ctx, r.ProfessionalID)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", r.ID.String()).Msg("cannot notify: professional lookup failed")
		return
	}
	tutor := patient.GuardianName
	if tutor == "" {
		tutor = "familia"
	}
	data := map[string]string{
		"tutor":        tutor,
		"paciente":     patient.FullName(),
		"profesional":  professional.FullName(),
		"especialidad": r.Specialty.DisplayName(),
	}
	if _, err := s.notifier.Enqueue(ctx, notification.TemplateReportAvailable, data, patient.GuardianEmail); err != nil {
		s.logger.Error().Err(err).Str("report_id", r.ID.String()).Msg("failed to queue notification")
	}
}

func newInterconsult(specialties []identity.Specialty, reason string) (*Interconsult, error) {
	if len(specialties) == 0 {
		return nil, apperr.Validation("at least one specialty is required for an interconsult")
	}
	seen := make(map[identity.Specialty]bool)
	out := make([]identity.Specialty, 0, len(specialties))
	for _, sp := range specialties {
		parsed, err := identity.ParseSpecialty(string(sp))
		if err != nil {
			return nil, err
		}
		if !seen[parsed] {
			seen[parsed] = true
			out = append(out, parsed)
		}
	}
	return &Interconsult{
		Specialties: out,
		Reason:      strings.TrimSpace(reason),
		RequestedAt: time.Now().UTC(),
	}, nil
}
