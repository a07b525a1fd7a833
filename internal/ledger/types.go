package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("ledger closed")

// Key identifies the marker row in the database drivers.
const Key = "last_announced_day"

// Ledger is the persistence API used by the orchestrator.
//
// Read returns "" when nothing has been written yet. Write replaces the whole
// stored value.
type Ledger interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, day string) error
	Close() error
}

// Config configures the ledger.
//
// Driver values:
//   - "file" (or empty): Path is the text file
//   - "sqlite": Path is the database file
//   - "postgres": DSN is a libpq/pgx connection string
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
