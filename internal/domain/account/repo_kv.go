package account

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

type userRepoKV struct {
	col *store.Collection[User]
}

func NewUserRepoKV(kv store.KV) UserRepository {
	return &userRepoKV{col: store.NewCollection[User](kv, store.KeyUsers)}
}

// Create stores u. Emails are unique regardless of case.
func (r *userRepoKV) Create(ctx context.Context, u *User) error {
	_, err := r.col.Mutate(ctx, func(items []User) ([]User, error) {
		for _, it := range items {
			if strings.EqualFold(it.Email, u.Email) {
				return nil, apperr.Conflict("a user with email %s already exists", u.Email)
			}
		}
		u.ID = uuid.New()
		u.CreatedAt = time.Now().UTC()
		u.UpdatedAt = u.CreatedAt
		return append(items, *u), nil
	})
	return err
}

func (r *userRepoKV) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok, err := r.col.Find(ctx, func(u User) bool { return u.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

func (r *userRepoKV) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, ok, err := r.col.Find(ctx, func(u User) bool { return strings.EqualFold(u.Email, email) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user %s not found", email)
	}
	return &u, nil
}

func (r *userRepoKV) Update(ctx context.Context, u *User) error {
	_, ok, err := r.col.Replace(ctx, func(cur User) bool { return cur.ID == u.ID }, func(cur User) (User, error) {
		u.CreatedAt = cur.CreatedAt
		u.UpdatedAt = time.Now().UTC()
		return *u, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user %s not found", u.ID)
	}
	return nil
}

// List returns users ordered by email.
func (r *userRepoKV) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	items, err := r.col.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	page, total := pagination.Page(items, limit, offset)
	out := make([]*User, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}
