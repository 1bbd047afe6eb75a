package followups

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/store"
	"github.com/clinic/clinic/pkg/pagination"
)

type followUpRepoKV struct {
	col *store.Collection[FollowUp]
}

func NewFollowUpRepoKV(kv store.KV) FollowUpRepository {
	return &followUpRepoKV{col: store.NewCollection[FollowUp](kv, store.KeyFollowUps)}
}

func (r *followUpRepoKV) Create(ctx context.Context, f *FollowUp) error {
	f.ID = uuid.New()
	f.CreatedAt = time.Now().UTC()
	return r.col.Append(ctx, *f)
}

func (r *followUpRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*FollowUp, error) {
	f, ok, err := r.col.Find(ctx, func(f FollowUp) bool { return f.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("follow-up %s not found", id)
	}
	return &f, nil
}

// ListByPatient returns the patient's log, most recent date first.
func (r *followUpRepoKV) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*FollowUp, int, error) {
	items, err := r.col.Filter(ctx, func(f FollowUp) bool { return f.PatientID == patientID })
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	page, total := pagination.Page(items, limit, offset)
	out := make([]*FollowUp, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}
