package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/store"
)

func newTestService() *Service {
	kv := store.NewMemory()
	return NewService(NewPatientRepoKV(kv), NewProfessionalRepoKV(kv), NewInsuranceProviderRepoKV(kv))
}

func TestCreatePatient(t *testing.T) {
	svc := newTestService()
	p := &Patient{FirstName: " Tomás ", LastName: "Gómez"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if !p.Active {
		t.Error("expected patient to be active")
	}
	if p.FirstName != "Tomás" {
		t.Errorf("expected trimmed first name, got %q", p.FirstName)
	}
	if p.CUDStatus != CUDNone {
		t.Errorf("expected default cud status none, got %q", p.CUDStatus)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		p    Patient
	}{
		{"missing last name", Patient{FirstName: "Ana"}},
		{"missing first name", Patient{LastName: "Paz"}},
		{"bad cud status", Patient{FirstName: "Ana", LastName: "Paz", CUDStatus: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			err := svc.CreatePatient(ctx, &p)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreatePatient_UnknownInsuranceProvider(t *testing.T) {
	svc := newTestService()
	missing := uuid.New()
	err := svc.CreatePatient(context.Background(), &Patient{FirstName: "Ana", LastName: "Paz", InsuranceProviderID: &missing})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetPatient_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.GetPatient(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdatePatient_KeepsCreatedAt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := &Patient{FirstName: "Ana", LastName: "Paz"}
	svc.CreatePatient(ctx, p)
	created := p.CreatedAt

	upd := &Patient{ID: p.ID, FirstName: "Ana", LastName: "Paz Ruiz", Active: true, CUDStatus: CUDActive}
	if err := svc.UpdatePatient(ctx, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.GetPatient(ctx, p.ID)
	if got.LastName != "Paz Ruiz" || got.CUDStatus != CUDActive {
		t.Errorf("update not persisted: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed from %v to %v", created, got.CreatedAt)
	}

	missing := &Patient{ID: uuid.New(), FirstName: "X", LastName: "Y"}
	if err := svc.UpdatePatient(ctx, missing); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeactivatePatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := &Patient{FirstName: "Ana", LastName: "Paz"}
	svc.CreatePatient(ctx, p)

	if err := svc.DeactivatePatient(ctx, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ := svc.GetPatient(ctx, p.ID)
	if got.Active {
		t.Error("expected patient to be inactive")
	}

	active, total, _ := svc.SearchPatients(ctx, map[string]string{"active": "true"}, 10, 0)
	if total != 0 || len(active) != 0 {
		t.Errorf("expected no active patients, got %d", total)
	}
}

func TestSearchPatients(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for _, p := range []*Patient{
		{FirstName: "Lucía", LastName: "Benítez", DocumentNumber: "40111222"},
		{FirstName: "Mateo", LastName: "Álvarez", DocumentNumber: "40333444"},
		{FirstName: "Lucas", LastName: "Benítez"},
	} {
		if err := svc.CreatePatient(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	byName, total, _ := svc.SearchPatients(ctx, map[string]string{"name": "benítez"}, 10, 0)
	if total != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	if byName[0].FirstName != "Lucas" {
		t.Errorf("expected results ordered by name, got %s first", byName[0].FirstName)
	}

	byDoc, total, _ := svc.SearchPatients(ctx, map[string]string{"document": "40333444"}, 10, 0)
	if total != 1 || byDoc[0].FirstName != "Mateo" {
		t.Errorf("unexpected document match %+v", byDoc)
	}

	page, total, _ := svc.SearchPatients(ctx, map[string]string{}, 2, 2)
	if total != 3 || len(page) != 1 {
		t.Errorf("expected last page of 1 out of 3, got %d of %d", len(page), total)
	}
}

func TestCreateProfessional_Specialty(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	p := &Professional{FirstName: "Laura", LastName: "Sosa", Specialty: "Fonoaudiología"}
	if err := svc.CreateProfessional(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Specialty != SpeechTherapy {
		t.Errorf("expected specialty normalized to code, got %q", p.Specialty)
	}

	bad := &Professional{FirstName: "Laura", LastName: "Sosa", Specialty: "odontologia"}
	if err := svc.CreateProfessional(ctx, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	found, total, err := svc.SearchProfessionals(ctx, map[string]string{"specialty": "fonoaudiologia"}, 10, 0)
	if err != nil || total != 1 || found[0].ID != p.ID {
		t.Errorf("unexpected search result total=%d err=%v", total, err)
	}
}

func TestParseSpecialty(t *testing.T) {
	for _, s := range Specialties {
		got, err := ParseSpecialty(s.DisplayName())
		if err != nil || got != s {
			t.Errorf("ParseSpecialty(%q) = %q, %v", s.DisplayName(), got, err)
		}
		got, err = ParseSpecialty(string(s))
		if err != nil || got != s {
			t.Errorf("ParseSpecialty(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseSpecialty("NEUROLOGÍA INFANTIL"); err != nil {
		t.Errorf("expected case-insensitive match, got %v", err)
	}
}

func TestPatientAgeOn(t *testing.T) {
	birth := mustDate(t, "2018-06-20")
	p := &Patient{BirthDate: &birth}
	if age := p.AgeOn(mustDate(t, "2024-06-19")); age != 5 {
		t.Errorf("expected 5, got %d", age)
	}
	if age := p.AgeOn(mustDate(t, "2024-06-20")); age != 6 {
		t.Errorf("expected 6, got %d", age)
	}
	if age := (&Patient{}).AgeOn(mustDate(t, "2024-06-20")); age != -1 {
		t.Errorf("expected -1 for unknown birth date, got %d", age)
	}
}

func TestInsuranceProviders(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.CreateInsuranceProvider(ctx, &InsuranceProvider{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	for _, name := range []string{"OSDE", "IOMA", "Galeno"} {
		if err := svc.CreateInsuranceProvider(ctx, &InsuranceProvider{Name: name}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, total, _ := svc.ListInsuranceProviders(ctx, 10, 0)
	if total != 3 || items[0].Name != "Galeno" {
		t.Errorf("expected 3 providers sorted by name, got %d first=%s", total, items[0].Name)
	}
}
