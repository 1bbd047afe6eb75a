package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// Search returns matches ordered by date and start time. A non-positive
	// limit returns every match.
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
}
