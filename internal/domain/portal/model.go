package portal

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/reports"
)

// Summary is what a family sees for one child.
type Summary struct {
	Patient      PatientHeader         `json:"patient"`
	Appointments []UpcomingAppointment `json:"appointments"`
	Reports      []SharedReport        `json:"reports"`
	Workshops    []WorkshopSeat        `json:"workshops"`
}

type PatientHeader struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	BirthDate *calendar.Date `json:"birth_date,omitempty"`
	Age       int            `json:"age,omitempty"`
}

type UpcomingAppointment struct {
	ID           uuid.UUID      `json:"id"`
	Date         calendar.Date  `json:"date"`
	Start        calendar.Clock `json:"start"`
	End          calendar.Clock `json:"end"`
	Status       string         `json:"status"`
	Professional string         `json:"professional"`
	Specialty    string         `json:"specialty"`
}

// SharedReport carries only the general report. The technical report
// never leaves the staff API.
type SharedReport struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Specialty    string            `json:"specialty"`
	Professional string            `json:"professional"`
	Date         time.Time         `json:"date"`
	Sections     []reports.Section `json:"sections"`
}

type WorkshopSeat struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Weekday     time.Weekday   `json:"weekday"`
	Start       calendar.Clock `json:"start"`
	End         calendar.Clock `json:"end"`
	NextSession calendar.Date  `json:"next_session"`
}
