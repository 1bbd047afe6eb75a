package reports

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/identity"
)

// ReportType is the kind of clinical report.
type ReportType string

const (
	TypeInitialEvaluation ReportType = "evaluacion_inicial"
	TypeInterdisciplinary ReportType = "interdisciplinario"
	TypeFollowUp          ReportType = "seguimiento"
	TypeInterconsultation ReportType = "interconsulta"
	TypeDischarge         ReportType = "alta"
)

var typeNames = map[ReportType]string{
	TypeInitialEvaluation: "Evaluación inicial",
	TypeInterdisciplinary: "Informe interdisciplinario",
	TypeFollowUp:          "Seguimiento",
	TypeInterconsultation: "Interconsulta",
	TypeDischarge:         "Alta",
}

func (t ReportType) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t ReportType) DisplayName() string { return typeNames[t] }

// Report lifecycle states.
const (
	StatusDraft                = "draft"
	StatusSaved                = "saved"
	StatusInterconsultPending  = "interconsult_pending"
	StatusInterconsultResolved = "interconsult_resolved"
)

var validStatuses = map[string]bool{
	StatusDraft:                true,
	StatusSaved:                true,
	StatusInterconsultPending:  true,
	StatusInterconsultResolved: true,
}

// Editable reports whether a report in status may still change its content.
func Editable(status string) bool {
	return status == StatusDraft || status == StatusSaved
}

// GeneralReport is the plain-language summary shared with the family.
type GeneralReport struct {
	SituacionActual          string `json:"situacionActual"`
	ProgresosObservados      string `json:"progresosObservados"`
	Fortalezas               string `json:"fortalezas"`
	AreasATrabajar           string `json:"areasATrabajar"`
	RecomendacionesFamilia   string `json:"recomendacionesFamilia"`
	ActividadesCasa          string `json:"actividadesCasa"`
	ProximosPasos            string `json:"proximosPasos"`
	ObservacionesAdicionales string `json:"observacionesAdicionales"`
}

// Sections returns the eight slots in display order.
func (g GeneralReport) Sections() []Section {
	return []Section{
		{"situacionActual", "Situación actual", g.SituacionActual},
		{"progresosObservados", "Progresos observados", g.ProgresosObservados},
		{"fortalezas", "Fortalezas", g.Fortalezas},
		{"areasATrabajar", "Áreas a trabajar", g.AreasATrabajar},
		{"recomendacionesFamilia", "Recomendaciones para la familia", g.RecomendacionesFamilia},
		{"actividadesCasa", "Actividades para realizar en casa", g.ActividadesCasa},
		{"proximosPasos", "Próximos pasos", g.ProximosPasos},
		{"observacionesAdicionales", "Observaciones adicionales", g.ObservacionesAdicionales},
	}
}

// derivable reports whether every slot other than the additional
// observations is blank.
func (g GeneralReport) derivable() bool {
	for _, s := range g.Sections() {
		if s.Key != "observacionesAdicionales" && strings.TrimSpace(s.Value) != "" {
			return false
		}
	}
	return true
}

// Interconsult is a request for other specialties to weigh in on a report.
type Interconsult struct {
	Specialties []identity.Specialty `json:"specialties"`
	Reason      string               `json:"reason"`
	RequestedAt time.Time            `json:"requested_at"`
	Response    string               `json:"response,omitempty"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
}

// Report is an informe: one technical report plus its family summary.
type Report struct {
	ID              uuid.UUID          `json:"id"`
	PatientID       uuid.UUID          `json:"patient_id"`
	ProfessionalID  uuid.UUID          `json:"professional_id"`
	Specialty       identity.Specialty `json:"specialty"`
	Type            ReportType         `json:"type"`
	Status          string             `json:"status"`
	Technical       TechnicalReport    `json:"technical"`
	General         GeneralReport      `json:"general"`
	VisibleToFamily bool               `json:"visible_to_family"`
	Interconsult    *Interconsult      `json:"interconsult,omitempty"`
	Version         int                `json:"version"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	SavedAt         *time.Time         `json:"saved_at,omitempty"`
}

// Filter narrows a report search. Zero fields match everything.
type Filter struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Specialty      identity.Specialty
	Type           ReportType
	Status         string
	VisibleOnly    bool
}

func (f Filter) matches(r *Report) bool {
	if f.PatientID != nil && r.PatientID != *f.PatientID {
		return false
	}
	if f.ProfessionalID != nil && r.ProfessionalID != *f.ProfessionalID {
		return false
	}
	if f.Specialty != "" && r.Specialty != f.Specialty {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.VisibleOnly && !r.VisibleToFamily {
		return false
	}
	return true
}
