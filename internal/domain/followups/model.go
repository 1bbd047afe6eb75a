package followups

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// Follow-up kinds.
const (
	KindCall    = "llamado"
	KindMeeting = "reunion"
	KindSchool  = "escuela"
	KindNote    = "nota"
)

var validKinds = map[string]bool{
	KindCall: true, KindMeeting: true, KindSchool: true, KindNote: true,
}

// FollowUp is a dated entry in a patient's follow-up log: a call to the
// family, a meeting, contact with the school or a plain note.
type FollowUp struct {
	ID             uuid.UUID     `json:"id"`
	PatientID      uuid.UUID     `json:"patient_id"`
	ProfessionalID uuid.UUID     `json:"professional_id"`
	Date           calendar.Date `json:"date"`
	Kind           string        `json:"kind"`
	Note           string        `json:"note"`
	CreatedAt      time.Time     `json:"created_at"`
}
