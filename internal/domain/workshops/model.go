package workshops

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// Workshop is a taller: a weekly group activity run by one or more
// professionals.
type Workshop struct {
	ID              uuid.UUID      `json:"id"`
	Active          bool           `json:"active"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	ProfessionalIDs []uuid.UUID    `json:"professional_ids"`
	Weekday         time.Weekday   `json:"weekday"`
	Start           calendar.Clock `json:"start"`
	End             calendar.Clock `json:"end"`
	Capacity        int            `json:"capacity"`
	PatientIDs      []uuid.UUID    `json:"patient_ids"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Enrolled reports whether patientID attends the workshop.
func (w *Workshop) Enrolled(patientID uuid.UUID) bool {
	for _, id := range w.PatientIDs {
		if id == patientID {
			return true
		}
	}
	return false
}

// SeatsLeft returns how many more patients can enroll.
func (w *Workshop) SeatsLeft() int {
	if n := w.Capacity - len(w.PatientIDs); n > 0 {
		return n
	}
	return 0
}

// NextSession returns the first date on or after from on which the
// workshop meets.
func (w *Workshop) NextSession(from calendar.Date) calendar.Date {
	diff := (int(w.Weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDays(diff)
}

// Filter narrows a workshop search. Zero fields match everything.
type Filter struct {
	ActiveOnly     bool
	ProfessionalID *uuid.UUID
	PatientID      *uuid.UUID
}

func (f Filter) matches(w *Workshop) bool {
	if f.ActiveOnly && !w.Active {
		return false
	}
	if f.PatientID != nil && !w.Enrolled(*f.PatientID) {
		return false
	}
	if f.ProfessionalID != nil {
		found := false
		for _, id := range w.ProfessionalIDs {
			if id == *f.ProfessionalID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
