package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type Service struct {
	patients      PatientRepository
	professionals ProfessionalRepository
	providers     InsuranceProviderRepository
}

func NewService(patients PatientRepository, professionals ProfessionalRepository, providers InsuranceProviderRepository) *Service {
	return &Service{patients: patients, professionals: professionals, providers: providers}
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(ctx, p); err != nil {
		return err
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(ctx, p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

// DeactivatePatient marks a patient inactive. Patients are never removed
// because appointments and reports keep referring to them.
func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Active = false
	return s.patients.Update(ctx, p)
}

func (s *Service) SearchPatients(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, params, limit, offset)
}

func (s *Service) validatePatient(ctx context.Context, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	if p.CUDStatus == "" {
		p.CUDStatus = CUDNone
	}
	if !validCUDStatuses[p.CUDStatus] {
		return apperr.Validation("invalid cud_status %q", p.CUDStatus)
	}
	if p.CUDStatus == CUDNone {
		p.CUDExpiry = nil
	}
	if p.InsuranceProviderID != nil {
		if _, err := s.providers.GetByID(ctx, *p.InsuranceProviderID); err != nil {
			return err
		}
	}
	return nil
}

// -- Professional --

func (s *Service) CreateProfessional(ctx context.Context, p *Professional) error {
	if err := validateProfessional(p); err != nil {
		return err
	}
	p.Active = true
	return s.professionals.Create(ctx, p)
}

func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return s.professionals.GetByID(ctx, id)
}

func (s *Service) UpdateProfessional(ctx context.Context, p *Professional) error {
	if err := validateProfessional(p); err != nil {
		return err
	}
	return s.professionals.Update(ctx, p)
}

func (s *Service) DeactivateProfessional(ctx context.Context, id uuid.UUID) error {
	p, err := s.professionals.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Active = false
	return s.professionals.Update(ctx, p)
}

func (s *Service) SearchProfessionals(ctx context.Context, params map[string]string, limit, offset int) ([]*Professional, int, error) {
	if v, ok := params["specialty"]; ok {
		sp, err := ParseSpecialty(v)
		if err != nil {
			return nil, 0, err
		}
		params["specialty"] = string(sp)
	}
	return s.professionals.Search(ctx, params, limit, offset)
}

func validateProfessional(p *Professional) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	sp, err := ParseSpecialty(string(p.Specialty))
	if err != nil {
		return err
	}
	p.Specialty = sp
	return nil
}

// -- Insurance Provider --

func (s *Service) CreateInsuranceProvider(ctx context.Context, ip *InsuranceProvider) error {
	ip.Name = strings.TrimSpace(ip.Name)
	if ip.Name == "" {
		return apperr.Validation("name is required")
	}
	ip.Active = true
	return s.providers.Create(ctx, ip)
}

func (s *Service) GetInsuranceProvider(ctx context.Context, id uuid.UUID) (*InsuranceProvider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) UpdateInsuranceProvider(ctx context.Context, ip *InsuranceProvider) error {
	ip.Name = strings.TrimSpace(ip.Name)
	if ip.Name == "" {
		return apperr.Validation("name is required")
	}
	return s.providers.Update(ctx, ip)
}

func (s *Service) ListInsuranceProviders(ctx context.Context, limit, offset int) ([]*InsuranceProvider, int, error) {
	return s.providers.List(ctx, limit, offset)
}
