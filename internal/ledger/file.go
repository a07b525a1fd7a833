package ledger

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "tempobot/pkg/logx"
)

// fileLedger keeps the marker as a single line in a plain text file.
//
// Each Read/Write opens the file on its own; nothing is held between calls.
// A crash in the middle of Write may leave a torn file; the next Read then
// returns garbage that never matches a date, which only causes a re-announce.
type fileLedger struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Ledger, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("ledger.path is required for file driver")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &fileLedger{log: log, path: path}, nil
}

func (l *fileLedger) Read(ctx context.Context) (string, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	l.log.Debug("opening ledger file", logx.String("path", l.path))
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

func (l *fileLedger) Write(ctx context.Context, day string) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(day); err != nil {
		_ = f.Close()
		l.log.Error("ledger write failed", logx.String("path", l.path), logx.String("day", day), logx.Err(err))
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	l.log.Debug("ledger written", logx.String("path", l.path), logx.String("day", day))
	return nil
}

func (l *fileLedger) Close() error { return nil }
