package ledger

import (
	"context"
	"errors"
	"strings"

	logx "tempobot/pkg/logx"
)

// Open initializes the configured ledger.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Ledger, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown ledger driver: " + driver)
	}
}
