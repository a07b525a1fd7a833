package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	logx "tempobot/pkg/logx"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS tempobot_ledger (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

type postgresLedger struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Ledger, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("ledger.dsn is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresLedger{pool: pool, log: log}, nil
}

func (l *postgresLedger) Read(ctx context.Context) (string, error) {
	if l == nil || l.pool == nil {
		return "", ErrDisabled
	}
	var v string
	err := l.pool.QueryRow(ctx, `SELECT value FROM tempobot_ledger WHERE key = $1`, Key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(v, "\n"), nil
}

func (l *postgresLedger) Write(ctx context.Context, day string) error {
	if l == nil || l.pool == nil {
		return ErrDisabled
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO tempobot_ledger(key, value) VALUES($1, $2)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		Key, day,
	)
	if err == nil {
		l.log.Debug("ledger written", logx.String("day", day))
	}
	return err
}

func (l *postgresLedger) Close() error {
	if l == nil || l.pool == nil {
		return nil
	}
	l.pool.Close()
	l.pool = nil
	return nil
}
