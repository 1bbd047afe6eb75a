package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/store"
	"github.com/clinic/clinic/pkg/pagination"
)

type appointmentRepoKV struct {
	col *store.Collection[Appointment]
}

func NewAppointmentRepoKV(kv store.KV) AppointmentRepository {
	return &appointmentRepoKV{col: store.NewCollection[Appointment](kv, store.KeyAppointments)}
}

func (r *appointmentRepoKV) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	return r.col.Append(ctx, *a)
}

func (r *appointmentRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok, err := r.col.Find(ctx, func(a Appointment) bool { return a.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	return &a, nil
}

func (r *appointmentRepoKV) Update(ctx context.Context, a *Appointment) error {
	_, ok, err := r.col.Replace(ctx, func(cur Appointment) bool { return cur.ID == a.ID }, func(cur Appointment) (Appointment, error) {
		a.CreatedAt = cur.CreatedAt
		a.UpdatedAt = time.Now().UTC()
		return *a, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("appointment %s not found", a.ID)
	}
	return nil
}

func (r *appointmentRepoKV) Search(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	items, err := r.col.Filter(ctx, func(a Appointment) bool { return f.matches(&a) })
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].Start.Before(items[j].Start)
	})
	page, total := pagination.Page(items, limit, offset)
	out := make([]*Appointment, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}
