package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
}

type ProfessionalRepository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	Update(ctx context.Context, p *Professional) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Professional, int, error)
}

type InsuranceProviderRepository interface {
	Create(ctx context.Context, ip *InsuranceProvider) error
	GetByID(ctx context.Context, id uuid.UUID) (*InsuranceProvider, error)
	Update(ctx context.Context, ip *InsuranceProvider) error
	List(ctx context.Context, limit, offset int) ([]*InsuranceProvider, int, error)
}
