package followups

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// Directory resolves the people a follow-up refers to.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*identity.Professional, error)
}

type Service struct {
	followUps FollowUpRepository
	directory Directory
}

func NewService(followUps FollowUpRepository, directory Directory) *Service {
	return &Service{followUps: followUps, directory: directory}
}

func (s *Service) Create(ctx context.Context, f *FollowUp) error {
	f.Note = strings.TrimSpace(f.Note)
	if f.Note == "" {
		return apperr.Validation("note is required")
	}
	if f.Kind == "" {
		f.Kind = KindNote
	}
	if !validKinds[f.Kind] {
		return apperr.Validation("invalid follow-up kind: %s", f.Kind)
	}
	if f.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	if _, err := s.directory.GetPatient(ctx, f.PatientID); err != nil {
		return err
	}
	if _, err := s.directory.GetProfessional(ctx, f.ProfessionalID); err != nil {
		return err
	}
	return s.followUps.Create(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*FollowUp, error) {
	return s.followUps.GetByID(ctx, id)
}

// ListByPatient returns the follow-up log of an existing patient.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*FollowUp, int, error) {
	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.followUps.ListByPatient(ctx, patientID, limit, offset)
}
