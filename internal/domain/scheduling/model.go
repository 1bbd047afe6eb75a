package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// Appointment status values.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusAttended  = "attended"
	StatusAbsent    = "absent"
)

// transitions lists the statuses reachable from each status. Statuses
// without an entry are terminal.
var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusAttended, StatusAbsent, StatusCancelled},
}

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusAttended:  true,
	StatusAbsent:    true,
}

// CanTransition reports whether an appointment may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Appointment is a turno: one session of a patient with a professional.
// Once created only its status and notes change.
type Appointment struct {
	ID                 uuid.UUID      `json:"id"`
	PatientID          uuid.UUID      `json:"patient_id"`
	ProfessionalID     uuid.UUID      `json:"professional_id"`
	Date               calendar.Date  `json:"date"`
	Start              calendar.Clock `json:"start"`
	End                calendar.Clock `json:"end"`
	Status             string         `json:"status"`
	Notes              string         `json:"notes,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (a Appointment) CalendarDate() calendar.Date   { return a.Date }
func (a Appointment) CalendarStart() calendar.Clock { return a.Start }

// Active reports whether the appointment is still expected to happen.
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// Filter narrows an appointment search. Zero fields match everything; the
// date bounds are inclusive.
type Filter struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Statuses       []string
	From           calendar.Date
	To             calendar.Date
}

func (f Filter) matches(a *Appointment) bool {
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.ProfessionalID != nil && a.ProfessionalID != *f.ProfessionalID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if a.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return a.Date.Between(f.From, f.To)
}
