package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "tempobot/pkg/logx"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ledger (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

type sqliteLedger struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Ledger, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("ledger.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteLedger{db: db, log: log}, nil
}

func (l *sqliteLedger) Read(ctx context.Context) (string, error) {
	if l == nil || l.db == nil {
		return "", ErrDisabled
	}
	var v string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM ledger WHERE key = ?`, Key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(v, "\n"), nil
}

func (l *sqliteLedger) Write(ctx context.Context, day string) error {
	if l == nil || l.db == nil {
		return ErrDisabled
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ledger(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		Key, day,
	)
	if err == nil {
		l.log.Debug("ledger written", logx.String("day", day))
	}
	return err
}

func (l *sqliteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
