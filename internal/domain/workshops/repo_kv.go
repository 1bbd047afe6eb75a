package workshops

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

type workshopRepoKV struct {
	col *store.Collection[Workshop]
}

func NewWorkshopRepoKV(kv store.KV) WorkshopRepository {
	return &workshopRepoKV{col: store.NewCollection[Workshop](kv, store.KeyWorkshops)}
}

func (r *workshopRepoKV) Create(ctx context.Context, w *Workshop) error {
	w.ID = uuid.New()
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt
	if w.PatientIDs == nil {
		w.PatientIDs = []uuid.UUID{}
	}
	return r.col.Append(ctx, *w)
}

func (r *workshopRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*Workshop, error) {
	w, ok, err := r.col.Find(ctx, func(w Workshop) bool { return w.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("workshop %s not found", id)
	}
	return &w, nil
}

func (r *workshopRepoKV) Update(ctx context.Context, w *Workshop) error {
	_, err := r.Modify(ctx, w.ID, func(cur *Workshop) error {
		created := cur.CreatedAt
		*cur = *w
		cur.CreatedAt = created
		return nil
	})
	return err
}

func (r *workshopRepoKV) Modify(ctx context.Context, id uuid.UUID, fn func(w *Workshop) error) (*Workshop, error) {
	updated, ok, err := r.col.Replace(ctx, func(cur Workshop) bool { return cur.ID == id }, func(cur Workshop) (Workshop, error) {
		if err := fn(&cur); err != nil {
			return cur, err
		}
		cur.ID = id
		cur.UpdatedAt = time.Now().UTC()
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("workshop %s not found", id)
	}
	return &updated, nil
}

// Search returns matching workshops ordered by weekday, start time and name.
func (r *workshopRepoKV) Search(ctx context.Context, f Filter, limit, offset int) ([]*Workshop, int, error) {
	items, err := r.col.Filter(ctx, func(w Workshop) bool { return f.matches(&w) })
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Weekday != b.Weekday {
			return mondayFirst(a.Weekday) < mondayFirst(b.Weekday)
		}
		if a.Start != b.Start {
			return a.Start.Before(b.Start)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	page, total := pagination.Page(items, limit, offset)
	out := make([]*Workshop, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}

// mondayFirst maps Sunday to 6 and Monday to 0.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
