// Package store persists the clinic's collections. Each collection is one
// JSON array kept under its own key in a key-value backend, and every write
// replaces the whole array.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Collection keys.
const (
	KeyPatients           = "patients"
	KeyProfessionals      = "professionals"
	KeyAppointments       = "appointments"
	KeyUsers              = "users"
	KeyInsuranceProviders = "insurance-providers"
	KeyWorkshops          = "workshops"
	KeyReports            = "reports"
	KeyFollowUps          = "follow-ups"
)

// ErrKeyNotFound is returned by KV.Get for a key that was never written.
var ErrKeyNotFound = errors.New("key not found")

// KV is the backend a Collection is stored in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the backend named by driver. dsn is the backend's connection
// string and is ignored for the memory driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (KV, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, dsn, o.prefix)
	case "postgres":
		if o.pool == nil {
			return nil, fmt.Errorf("postgres store requires a connection pool")
		}
		return NewPostgres(o.pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

type options struct {
	pool   *pgxpool.Pool
	prefix string
}

// Option configures Open.
type Option func(*options)

// WithPool supplies the connection pool used by the postgres driver.
func WithPool(pool *pgxpool.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithPrefix namespaces every key, for backends shared with other services.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}
