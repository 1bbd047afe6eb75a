package reports

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/store"
	"github.com/clinic/clinic/pkg/pagination"
)

type reportRepoKV struct {
	col *store.Collection[Report]
}

func NewReportRepoKV(kv store.KV) ReportRepository {
	return &reportRepoKV{col: store.NewCollection[Report](kv, store.KeyReports)}
}

func (r *reportRepoKV) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	rep.CreatedAt = time.Now().UTC()
	rep.UpdatedAt = rep.CreatedAt
	return r.col.Append(ctx, *rep)
}

func (r *reportRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, ok, err := r.col.Find(ctx, func(rep Report) bool { return rep.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("report %s not found", id)
	}
	return &rep, nil
}

// Update stores rep, refusing the write when the stored version differs
// from rep.Version. On success rep.Version is incremented.
func (r *reportRepoKV) Update(ctx context.Context, rep *Report) error {
	_, ok, err := r.col.Replace(ctx, func(cur Report) bool { return cur.ID == rep.ID }, func(cur Report) (Report, error) {
		if cur.Version != rep.Version {
			return cur, apperr.Conflict("report %s was modified concurrently (version %d, have %d)", rep.ID, cur.Version, rep.Version)
		}
		rep.Version = cur.Version + 1
		rep.CreatedAt = cur.CreatedAt
		rep.UpdatedAt = time.Now().UTC()
		return *rep, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("report %s not found", rep.ID)
	}
	return nil
}

// Search returns matching reports, newest first.
func (r *reportRepoKV) Search(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	items, err := r.col.Filter(ctx, func(rep Report) bool { return f.matches(&rep) })
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	page, total := pagination.Page(items, limit, offset)
	out := make([]*Report, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}
