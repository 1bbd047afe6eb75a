package workshops

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// Directory resolves the people a workshop refers to.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*identity.Professional, error)
}

type Service struct {
	workshops WorkshopRepository
	directory Directory
}

func NewService(workshops WorkshopRepository, directory Directory) *Service {
	return &Service{workshops: workshops, directory: directory}
}

func (s *Service) Create(ctx context.Context, w *Workshop) error {
	if err := s.validate(ctx, w); err != nil {
		return err
	}
	w.Active = true
	w.PatientIDs = []uuid.UUID{}
	return s.workshops.Create(ctx, w)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Workshop, error) {
	return s.workshops.GetByID(ctx, id)
}

// Update replaces the workshop's details. Enrollment is kept as stored and
// the capacity may not drop below the number of enrolled patients.
func (s *Service) Update(ctx context.Context, w *Workshop) (*Workshop, error) {
	if err := s.validate(ctx, w); err != nil {
		return nil, err
	}
	return s.workshops.Modify(ctx, w.ID, func(cur *Workshop) error {
		if w.Capacity < len(cur.PatientIDs) {
			return apperr.Conflict("capacity %d is below the %d enrolled patients", w.Capacity, len(cur.PatientIDs))
		}
		cur.Name = w.Name
		cur.Description = w.Description
		cur.ProfessionalIDs = w.ProfessionalIDs
		cur.Weekday = w.Weekday
		cur.Start = w.Start
		cur.End = w.End
		cur.Capacity = w.Capacity
		return nil
	})
}

// Deactivate closes a workshop. Enrollment is kept for the record.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := s.workshops.Modify(ctx, id, func(cur *Workshop) error {
		cur.Active = false
		return nil
	})
	return err
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Workshop, int, error) {
	return s.workshops.Search(ctx, f, limit, offset)
}

// Enroll adds a patient to an active workshop with free seats.
func (s *Service) Enroll(ctx context.Context, id, patientID uuid.UUID) (*Workshop, error) {
	patient, err := s.directory.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.Active {
		return nil, apperr.Validation("patient %s is inactive", patientID)
	}
	return s.workshops.Modify(ctx, id, func(cur *Workshop) error {
		if !cur.Active {
			return apperr.Conflict("workshop %s is closed", id)
		}
		if cur.Enrolled(patientID) {
			return apperr.Conflict("patient %s is already enrolled", patientID)
		}
		if cur.SeatsLeft() == 0 {
			return apperr.Conflict("workshop %s is full (%d/%d)", cur.Name, len(cur.PatientIDs), cur.Capacity)
		}
		cur.PatientIDs = append(cur.PatientIDs, patientID)
		return nil
	})
}

func (s *Service) Unenroll(ctx context.Context, id, patientID uuid.UUID) (*Workshop, error) {
	return s.workshops.Modify(ctx, id, func(cur *Workshop) error {
		for i, pid := range cur.PatientIDs {
			if pid == patientID {
				cur.PatientIDs = append(cur.PatientIDs[:i], cur.PatientIDs[i+1:]...)
				return nil
			}
		}
		return apperr.NotFound("patient %s is not enrolled in workshop %s", patientID, id)
	})
}

func (s *Service) validate(ctx context.Context, w *Workshop) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return apperr.Validation("name is required")
	}
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return apperr.Validation("weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	if w.Start.IsZero() || w.End.IsZero() {
		return apperr.Validation("start and end are required")
	}
	if !w.Start.Before(w.End) {
		return apperr.Validation("start %s must be before end %s", w.Start, w.End)
	}
	if w.Capacity < 1 {
		return apperr.Validation("capacity must be at least 1")
	}
	if len(w.ProfessionalIDs) == 0 {
		return apperr.Validation("at least one professional is required")
	}
	for _, pid := range w.ProfessionalIDs {
		if _, err := s.directory.GetProfessional(ctx, pid); err != nil {
			return err
		}
	}
	return nil
}
