package workshops

import (
	"context"

	"github.com/google/uuid"
)

type WorkshopRepository interface {
	Create(ctx context.Context, w *Workshop) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workshop, error)
	Update(ctx context.Context, w *Workshop) error
	// Modify applies fn to the stored workshop and saves the result in one
	// write. Nothing is saved when fn returns an error.
	Modify(ctx context.Context, id uuid.UUID, fn func(w *Workshop) error) (*Workshop, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Workshop, int, error)
}
