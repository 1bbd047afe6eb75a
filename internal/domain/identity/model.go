package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// CUD (Certificado Único de Discapacidad) status values.
const (
	CUDNone       = "none"
	CUDInProgress = "in_progress"
	CUDActive     = "active"
	CUDExpired    = "expired"
)

var validCUDStatuses = map[string]bool{
	CUDNone: true, CUDInProgress: true, CUDActive: true, CUDExpired: true,
}

// Patient is a child treated at the center.
type Patient struct {
	ID                  uuid.UUID      `json:"id"`
	Active              bool           `json:"active"`
	FirstName           string         `json:"first_name"`
	LastName            string         `json:"last_name"`
	DocumentNumber      string         `json:"document_number,omitempty"`
	BirthDate           *calendar.Date `json:"birth_date,omitempty"`
	GuardianName        string         `json:"guardian_name,omitempty"`
	GuardianPhone       string         `json:"guardian_phone,omitempty"`
	GuardianEmail       string         `json:"guardian_email,omitempty"`
	InsuranceProviderID *uuid.UUID     `json:"insurance_provider_id,omitempty"`
	AffiliateNumber     string         `json:"affiliate_number,omitempty"`
	CUDStatus           string         `json:"cud_status"`
	CUDExpiry           *calendar.Date `json:"cud_expiry,omitempty"`
	Diagnosis           string         `json:"diagnosis,omitempty"`
	School              string         `json:"school,omitempty"`
	Notes               string         `json:"notes,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// AgeOn returns the patient's age in whole years on day, or -1 when the
// birth date is unknown.
func (p *Patient) AgeOn(day calendar.Date) int {
	if p.BirthDate == nil || p.BirthDate.IsZero() {
		return -1
	}
	b := *p.BirthDate
	age := day.Year() - b.Year()
	if day.Month() < b.Month() || (day.Month() == b.Month() && day.Day() < b.Day()) {
		age--
	}
	return age
}

// Professional is a member of the clinical staff.
type Professional struct {
	ID            uuid.UUID `json:"id"`
	Active        bool      `json:"active"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Specialty     Specialty `json:"specialty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Professional) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// InsuranceProvider is an obra social or prepaid health plan.
type InsuranceProvider struct {
	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"active"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
