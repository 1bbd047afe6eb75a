package identity

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/store"
	"github.com/clinic/clinic/pkg/pagination"
)

// =========== Patient Repository ===========

type patientRepoKV struct{ col *store.Collection[Patient] }

func NewPatientRepoKV(kv store.KV) PatientRepository {
	return &patientRepoKV{col: store.NewCollection[Patient](kv, store.KeyPatients)}
}

func (r *patientRepoKV) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	return r.col.Append(ctx, *p)
}

func (r *patientRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok, err := r.col.Find(ctx, func(p Patient) bool { return p.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	return &p, nil
}

func (r *patientRepoKV) Update(ctx context.Context, p *Patient) error {
	_, ok, err := r.col.Replace(ctx, func(cur Patient) bool { return cur.ID == p.ID }, func(cur Patient) (Patient, error) {
		p.CreatedAt = cur.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		return *p, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("patient %s not found", p.ID)
	}
	return nil
}

func (r *patientRepoKV) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	name := strings.ToLower(params["name"])
	items, err := r.col.Filter(ctx, func(p Patient) bool {
		if name != "" && !strings.Contains(strings.ToLower(p.FullName()), name) {
			return false
		}
		if v, ok := params["document"]; ok && p.DocumentNumber != v {
			return false
		}
		if v, ok := params["active"]; ok && (v == "true") != p.Active {
			return false
		}
		if v, ok := params["insurance_provider_id"]; ok && (p.InsuranceProviderID == nil || p.InsuranceProviderID.String() != v) {
			return false
		}
		if v, ok := params["cud_status"]; ok && p.CUDStatus != v {
			return false
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].LastName != items[j].LastName {
			return items[i].LastName < items[j].LastName
		}
		return items[i].FirstName < items[j].FirstName
	})
	page, total := pagination.Page(items, limit, offset)
	return toPtrs(page), total, nil
}

// =========== Professional Repository ===========

type professionalRepoKV struct {
	col *store.Collection[Professional]
}

func NewProfessionalRepoKV(kv store.KV) ProfessionalRepository {
	return &professionalRepoKV{col: store.NewCollection[Professional](kv, store.KeyProfessionals)}
}

func (r *professionalRepoKV) Create(ctx context.Context, p *Professional) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	return r.col.Append(ctx, *p)
}

func (r *professionalRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	p, ok, err := r.col.Find(ctx, func(p Professional) bool { return p.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("professional %s not found", id)
	}
	return &p, nil
}

func (r *professionalRepoKV) Update(ctx context.Context, p *Professional) error {
	_, ok, err := r.col.Replace(ctx, func(cur Professional) bool { return cur.ID == p.ID }, func(cur Professional) (Professional, error) {
		p.CreatedAt = cur.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		return *p, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("professional %s not found", p.ID)
	}
	return nil
}

func (r *professionalRepoKV) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Professional, int, error) {
	name := strings.ToLower(params["name"])
	items, err := r.col.Filter(ctx, func(p Professional) bool {
		if name != "" && !strings.Contains(strings.ToLower(p.FullName()), name) {
			return false
		}
		if v, ok := params["specialty"]; ok && string(p.Specialty) != v {
			return false
		}
		if v, ok := params["active"]; ok && (v == "true") != p.Active {
			return false
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].LastName < items[j].LastName })
	page, total := pagination.Page(items, limit, offset)
	return toPtrs(page), total, nil
}

// =========== Insurance Provider Repository ===========

type insuranceProviderRepoKV struct {
	col *store.Collection[InsuranceProvider]
}

func NewInsuranceProviderRepoKV(kv store.KV) InsuranceProviderRepository {
	return &insuranceProviderRepoKV{col: store.NewCollection[InsuranceProvider](kv, store.KeyInsuranceProviders)}
}

func (r *insuranceProviderRepoKV) Create(ctx context.Context, ip *InsuranceProvider) error {
	ip.ID = uuid.New()
	ip.CreatedAt = time.Now().UTC()
	ip.UpdatedAt = ip.CreatedAt
	return r.col.Append(ctx, *ip)
}

func (r *insuranceProviderRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*InsuranceProvider, error) {
	ip, ok, err := r.col.Find(ctx, func(ip InsuranceProvider) bool { return ip.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("insurance provider %s not found", id)
	}
	return &ip, nil
}

func (r *insuranceProviderRepoKV) Update(ctx context.Context, ip *InsuranceProvider) error {
	_, ok, err := r.col.Replace(ctx, func(cur InsuranceProvider) bool { return cur.ID == ip.ID }, func(cur InsuranceProvider) (InsuranceProvider, error) {
		ip.CreatedAt = cur.CreatedAt
		ip.UpdatedAt = time.Now().UTC()
		return *ip, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("insurance provider %s not found", ip.ID)
	}
	return nil
}

func (r *insuranceProviderRepoKV) List(ctx context.Context, limit, offset int) ([]*InsuranceProvider, int, error) {
	items, err := r.col.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	page, total := pagination.Page(items, limit, offset)
	return toPtrs(page), total, nil
}

func toPtrs[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
