// Package sandbox fills an empty store with reproducible demo data: one
// professional per specialty, patients with their families, a week of
// appointments, a workshop and a shared report.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/account"
	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/reports"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/domain/workshops"
	"github.com/clinic/clinic/internal/platform/auth"
)

type SeedConfig struct {
	Patients int
	// Seed makes runs reproducible; the same seed yields the same names.
	Seed int64
	// Password is set on every demo account.
	Password string
	// Today anchors the generated week of appointments.
	Today calendar.Date
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Patients: 8,
		Seed:     1,
		Password: "demo1234",
		Today:    calendar.DateOf(time.Now()),
	}
}

type SeedResult struct {
	Professionals int `json:"professionals"`
	Patients      int `json:"patients"`
	Users         int `json:"users"`
	Appointments  int `json:"appointments"`
	Workshops     int `json:"workshops"`
	Reports       int `json:"reports"`
}

// Services are the domain services the seeder writes through, so demo
// data passes the same validation as real data.
type Services struct {
	People     *identity.Service
	Accounts   *account.Service
	Scheduling *scheduling.Service
	Workshops  *workshops.Service
	Reports    *reports.Service
}

type Seeder struct {
	cfg    SeedConfig
	svc    Services
	rng    *rand.Rand
	logger zerolog.Logger
}

func NewSeeder(cfg SeedConfig, svc Services, logger zerolog.Logger) *Seeder {
	if cfg.Patients <= 0 {
		cfg.Patients = DefaultSeedConfig().Patients
	}
	if cfg.Password == "" {
		cfg.Password = DefaultSeedConfig().Password
	}
	if cfg.Today.IsZero() {
		cfg.Today = calendar.DateOf(time.Now())
	}
	return &Seeder{
		cfg:    cfg,
		svc:    svc,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger.With().Str("component", "seeder").Logger(),
	}
}

var (
	firstNames = []string{"Tomás", "Valentina", "Benjamín", "Emma", "Joaquín", "Martina", "Lautaro", "Catalina", "Thiago", "Sofía", "Mateo", "Isabella"}
	lastNames  = []string{"Gómez", "Fernández", "López", "Martínez", "Rodríguez", "Pérez", "Sosa", "Romero", "Díaz", "Álvarez"}
	guardians  = []string{"Carla", "Mariano", "Lucía", "Diego", "Florencia", "Pablo", "Romina", "Gustavo"}
	schools    = []string{"Escuela N° 12", "Colegio San José", "Jardín Los Pinos", "Escuela Técnica N° 3"}
	motives    = map[identity.Specialty]string{
		identity.Psychology:     "Dificultades para sostener la atención en clase",
		identity.Psychopedagogy: "Dificultades en lectoescritura",
		identity.SpeechTherapy:  "Dificultad articulatoria",
		identity.Kinesiology:    "Retraso en la marcha",
		identity.ChildNeurology: "Control de epilepsia",
	}
)

var professionalNames = map[identity.Specialty][2]string{
	identity.Psychology:     {"Paula", "Ríos"},
	identity.Psychopedagogy: {"Mariana", "Quiroga"},
	identity.SpeechTherapy:  {"Laura", "Sosa"},
	identity.Kinesiology:    {"Federico", "Ibarra"},
	identity.ChildNeurology: {"Andrés", "Molina"},
}

func (s *Seeder) pick(pool []string) string {
	return pool[s.rng.Intn(len(pool))]
}

// Seed writes the demo data set. It is meant for an empty store; running it
// twice fails on the duplicate account emails.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	res := &SeedResult{}

	if err := s.seedStaffAccounts(ctx, res); err != nil {
		return nil, err
	}
	professionals, err := s.seedProfessionals(ctx, res)
	if err != nil {
		return nil, err
	}
	provider := &identity.InsuranceProvider{Name: "OSDE", Code: "osde"}
	if err := s.svc.People.CreateInsuranceProvider(ctx, provider); err != nil {
		return nil, fmt.Errorf("seed insurance provider: %w", err)
	}
	patients, err := s.seedPatients(ctx, provider.ID, res)
	if err != nil {
		return nil, err
	}
	if err := s.seedAppointments(ctx, patients, professionals, res); err != nil {
		return nil, err
	}
	if err := s.seedWorkshop(ctx, patients, professionals, res); err != nil {
		return nil, err
	}
	if err := s.seedReport(ctx, patients[0], professionals[identity.SpeechTherapy], res); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("professionals", res.Professionals).
		Int("patients", res.Patients).
		Int("users", res.Users).
		Int("appointments", res.Appointments).
		Msg("demo data seeded")
	return res, nil
}

func (s *Seeder) createUser(ctx context.Context, in account.NewUser, res *SeedResult) error {
	in.Password = s.cfg.Password
	if _, err := s.svc.Accounts.CreateUser(ctx, in); err != nil {
		return fmt.Errorf("seed user %s: %w", in.Email, err)
	}
	res.Users++
	return nil
}

func (s *Seeder) seedStaffAccounts(ctx context.Context, res *SeedResult) error {
	if err := s.createUser(ctx, account.NewUser{Email: "admin@clinica.test", Name: "Administración", Role: auth.RoleAdmin}, res); err != nil {
		return err
	}
	return s.createUser(ctx, account.NewUser{Email: "recepcion@clinica.test", Name: "Recepción", Role: auth.RoleSecretary}, res)
}

func (s *Seeder) seedProfessionals(ctx context.Context, res *SeedResult) (map[identity.Specialty]*identity.Professional, error) {
	out := make(map[identity.Specialty]*identity.Professional, len(identity.Specialties))
	for i, sp := range identity.Specialties {
		name := professionalNames[sp]
		p := &identity.Professional{
			FirstName:     name[0],
			LastName:      name[1],
			Specialty:     sp,
			LicenseNumber: fmt.Sprintf("MP %d", 1000+i),
			Email:         emailFor(name[0], name[1], "clinica.test"),
		}
		if err := s.svc.People.CreateProfessional(ctx, p); err != nil {
			return nil, fmt.Errorf("seed professional: %w", err)
		}
		out[sp] = p
		res.Professionals++

		id := p.ID
		if err := s.createUser(ctx, account.NewUser{
			Email:          p.Email,
			Name:           p.FullName(),
			Role:           auth.RoleProfessional,
			ProfessionalID: &id,
		}, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Seeder) seedPatients(ctx context.Context, providerID uuid.UUID, res *SeedResult) ([]*identity.Patient, error) {
	out := make([]*identity.Patient, 0, s.cfg.Patients)
	for i := 0; i < s.cfg.Patients; i++ {
		birth := s.cfg.Today.AddMonths(-12 * (3 + s.rng.Intn(10))).AddDays(-s.rng.Intn(365))
		guardian := s.pick(guardians)
		last := s.pick(lastNames)
		p := &identity.Patient{
			FirstName:           s.pick(firstNames),
			LastName:            last,
			DocumentNumber:      fmt.Sprintf("%d", 50000000+s.rng.Intn(9000000)),
			BirthDate:           &birth,
			GuardianName:        guardian,
			GuardianPhone:       fmt.Sprintf("11-%04d-%04d", s.rng.Intn(10000), s.rng.Intn(10000)),
			GuardianEmail:       emailFor(guardian, fmt.Sprintf("%s%d", last, i+1), "familia.test"),
			InsuranceProviderID: &providerID,
			AffiliateNumber:     fmt.Sprintf("%08d", s.rng.Intn(100000000)),
			School:              s.pick(schools),
		}
		if err := s.svc.People.CreatePatient(ctx, p); err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		out = append(out, p)
		res.Patients++

		if err := s.createUser(ctx, account.NewUser{
			Email:      p.GuardianEmail,
			Name:       guardian,
			Role:       auth.RoleFamily,
			PatientIDs: []uuid.UUID{p.ID},
		}, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// seedAppointments books each patient twice during the working week that
// contains Today.
func (s *Seeder) seedAppointments(ctx context.Context, patients []*identity.Patient, professionals map[identity.Specialty]*identity.Professional, res *SeedResult) error {
	monday := s.cfg.Today.AddDays(-((int(s.cfg.Today.Weekday()) + 6) % 7))
	for i, p := range patients {
		for j := 0; j < 2; j++ {
			sp := identity.Specialties[(i+j)%len(identity.Specialties)]
			start := calendar.NewClock(8+s.rng.Intn(11), 15*s.rng.Intn(4))
			a := &scheduling.Appointment{
				PatientID:      p.ID,
				ProfessionalID: professionals[sp].ID,
				Date:           monday.AddDays(s.rng.Intn(5)),
				Start:          start,
				End:            calendar.NewClock(start.Hour(), start.Minute()+45),
			}
			if j == 0 {
				a.Status = scheduling.StatusConfirmed
			}
			if err := s.svc.Scheduling.CreateAppointment(ctx, a); err != nil {
				return fmt.Errorf("seed appointment: %w", err)
			}
			res.Appointments++
		}
	}
	return nil
}

func (s *Seeder) seedWorkshop(ctx context.Context, patients []*identity.Patient, professionals map[identity.Specialty]*identity.Professional, res *SeedResult) error {
	w := &workshops.Workshop{
		Name:            "Taller de habilidades sociales",
		Description:     "Juego reglado y trabajo en grupo para niños de 6 a 9 años.",
		ProfessionalIDs: []uuid.UUID{professionals[identity.Psychology].ID, professionals[identity.Psychopedagogy].ID},
		Weekday:         time.Wednesday,
		Start:           calendar.NewClock(17, 0),
		End:             calendar.NewClock(18, 30),
		Capacity:        6,
	}
	if err := s.svc.Workshops.Create(ctx, w); err != nil {
		return fmt.Errorf("seed workshop: %w", err)
	}
	res.Workshops++
	for i := 0; i < len(patients) && i < 3; i++ {
		if _, err := s.svc.Workshops.Enroll(ctx, w.ID, patients[i].ID); err != nil {
			return fmt.Errorf("seed enrollment: %w", err)
		}
	}
	return nil
}

func (s *Seeder) seedReport(ctx context.Context, patient *identity.Patient, professional *identity.Professional, res *SeedResult) error {
	tech, err := reports.NewTechnicalReport(professional.Specialty, map[string]string{
		"motivoConsulta":     motives[professional.Specialty],
		"lenguajeExpresivo":  "Amplió su vocabulario y arma frases de tres a cuatro palabras.",
		"articulacion":       "Sustituye /r/ por /l/ en posición inicial.",
		"comunicacionSocial": "Busca la interacción y sostiene turnos en el juego.",
		"planTratamiento":    "Continuar con sesiones semanales y reevaluar en tres meses.",
	})
	if err != nil {
		return fmt.Errorf("seed report: %w", err)
	}
	r := &reports.Report{
		PatientID:      patient.ID,
		ProfessionalID: professional.ID,
		Type:           reports.TypeInitialEvaluation,
		Technical:      tech,
	}
	if err := s.svc.Reports.Create(ctx, r); err != nil {
		return fmt.Errorf("seed report: %w", err)
	}
	if _, err := s.svc.Reports.Save(ctx, r.ID); err != nil {
		return fmt.Errorf("save seeded report: %w", err)
	}
	if _, err := s.svc.Reports.SetVisibility(ctx, r.ID, true); err != nil {
		return fmt.Errorf("share seeded report: %w", err)
	}
	res.Reports++
	return nil
}

var emailReplacer = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "Á", "a", "É", "e", " ", "")

func emailFor(first, last, domain string) string {
	return strings.ToLower(emailReplacer.Replace(first)+"."+emailReplacer.Replace(last)) + "@" + domain
}
