package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	logx "notifylog/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps the history in one table. A database file that SQLite
// refuses to read is reported as ErrCorrupt by Load and recreated by the
// next Save.
type sqliteStore struct {
	path string
	busy time.Duration
	log  logx.Logger

	mu     sync.Mutex
	db     *sql.DB
	broken error // set while the file on disk is unreadable
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	st := &sqliteStore{path: path, busy: cfg.BusyTimeout, log: log.With(logx.String("path", path))}
	if err := st.open(context.Background()); err != nil {
		if !isCorruptDB(err) {
			st.closeDB()
			return nil, err
		}
		st.log.Warn("history database unreadable", logx.Err(err))
		st.broken = err
	}
	return st, nil
}

// open connects and applies the schema. s.db is set even when migration
// fails so the handle can be closed.
func (s *sqliteStore) open(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if s.busy > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", s.busy.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	return s.migrate(ctx)
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// recreate replaces an unreadable database file with an empty one.
func (s *sqliteStore) recreate(ctx context.Context) error {
	s.closeDB()
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove unreadable history: %w", err)
		}
	}
	if err := s.open(ctx); err != nil {
		return err
	}
	s.broken = nil
	s.log.Warn("history database recreated")
	return nil
}

func (s *sqliteStore) closeDB() {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// isCorruptDB reports whether SQLite rejected the file contents themselves.
func isCorruptDB(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

func corruptOr(err error) error {
	if isCorruptDB(err) {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return err
}

func (s *sqliteStore) Load(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrDisabled
	}
	if s.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, s.broken)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, subject_suffix, content, date_sent FROM history ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", corruptOr(err))
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r    recordJSON
			date string
		)
		if err := rows.Scan(&r.Name, &r.SubjectSuffix, &r.Content, &date); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.DateSent = date
		rec, err := r.record()
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorrupt, len(out), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, corruptOr(err)
	}
	return out, nil
}

func (s *sqliteStore) Save(ctx context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrDisabled
	}
	if s.broken != nil {
		if err := s.recreate(ctx); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO history(seq, name, subject_suffix, content, date_sent) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range recs {
		if _, err := stmt.ExecContext(ctx, i, r.Name, r.SubjectSuffix, r.Content, r.DateSent.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("history saved", logx.Int("records", len(recs)))
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
