// Package portal assembles the read-only view offered to families.
package portal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/reports"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/domain/workshops"
)

type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*identity.Professional, error)
}

type Appointments interface {
	ListAppointments(ctx context.Context, f scheduling.Filter, limit, offset int) ([]*scheduling.Appointment, int, error)
}

type Reports interface {
	List(ctx context.Context, f reports.Filter, limit, offset int) ([]*reports.Report, int, error)
}

type Workshops interface {
	List(ctx context.Context, f workshops.Filter, limit, offset int) ([]*workshops.Workshop, int, error)
}

type Service struct {
	directory    Directory
	appointments Appointments
	reports      Reports
	workshops    Workshops
	now          func() time.Time
	logger       zerolog.Logger
}

func NewService(directory Directory, appointments Appointments, reports Reports, workshops Workshops, logger zerolog.Logger) *Service {
	return &Service{
		directory:    directory,
		appointments: appointments,
		reports:      reports,
		workshops:    workshops,
		now:          time.Now,
		logger:       logger.With().Str("component", "portal").Logger(),
	}
}

// Summary collects everything shared with the family of patientID:
// upcoming appointments that were not cancelled, reports marked visible and
// the workshops the child attends.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	patient, err := s.directory.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	today := calendar.DateOf(s.now())
	out := &Summary{
		Patient: PatientHeader{
			ID:        patient.ID,
			Name:      patient.FullName(),
			BirthDate: patient.BirthDate,
		},
		Appointments: []UpcomingAppointment{},
		Reports:      []SharedReport{},
		Workshops:    []WorkshopSeat{},
	}
	if age := patient.AgeOn(today); age >= 0 {
		out.Patient.Age = age
	}

	names := professionalNames{dir: s.directory, cache: map[uuid.UUID]professionalInfo{}}

	appts, _, err := s.appointments.ListAppointments(ctx, scheduling.Filter{PatientID: &patientID, From: today}, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if a.Status == scheduling.StatusCancelled {
			continue
		}
		prof, err := names.get(ctx, a.ProfessionalID)
		if err != nil {
			return nil, err
		}
		out.Appointments = append(out.Appointments, UpcomingAppointment{
			ID:           a.ID,
			Date:         a.Date,
			Start:        a.Start,
			End:          a.End,
			Status:       a.Status,
			Professional: prof.name,
			Specialty:    prof.specialty,
		})
	}

	shared, _, err := s.reports.List(ctx, reports.Filter{PatientID: &patientID, VisibleOnly: true}, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range shared {
		prof, err := names.get(ctx, r.ProfessionalID)
		if err != nil {
			return nil, err
		}
		date := r.CreatedAt
		if r.SavedAt != nil {
			date = *r.SavedAt
		}
		out.Reports = append(out.Reports, SharedReport{
			ID:           r.ID,
			Title:        r.Type.DisplayName(),
			Specialty:    r.Specialty.DisplayName(),
			Professional: prof.name,
			Date:         date,
			Sections:     filled(r.General.Sections()),
		})
	}

	attended, _, err := s.workshops.List(ctx, workshops.Filter{ActiveOnly: true, PatientID: &patientID}, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, w := range attended {
		out.Workshops = append(out.Workshops, WorkshopSeat{
			ID:          w.ID,
			Name:        w.Name,
			Weekday:     w.Weekday,
			Start:       w.Start,
			End:         w.End,
			NextSession: w.NextSession(today),
		})
	}
	return out, nil
}

// filled drops blank sections.
func filled(sections []reports.Section) []reports.Section {
	out := sections[:0]
	for _, sec := range sections {
		if strings.TrimSpace(sec.Value) != "" {
			out = append(out, sec)
		}
	}
	return out
}

type professionalInfo struct {
	name      string
	specialty string
}

// professionalNames resolves each professional once per summary.
type professionalNames struct {
	dir   Directory
	cache map[uuid.UUID]professionalInfo
}

func (n professionalNames) get(ctx context.Context, id uuid.UUID) (professionalInfo, error) {
	if info, ok := n.cache[id]; ok {
		return info, nil
	}
	p, err := n.dir.GetProfessional(ctx, id)
	if err != nil {
		return professionalInfo{}, err
	}
	info := professionalInfo{name: p.FullName(), specialty: p.Specialty.DisplayName()}
	n.cache[id] = info
	return info, nil
}
