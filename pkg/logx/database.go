package logx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const dbWriteTimeout = 2 * time.Second

// Column defaults match the historical SysLog table layout.
const (
	DefaultLogTable      = "SysLog"
	DefaultDateColumn    = "log_date_recorded"
	DefaultMessageColumn = "log_message"
	DefaultLevelColumn   = "log_level"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// databaseSink inserts one row per log line.
type databaseSink struct {
	db     *sql.DB
	insert string
	fmt    lineFormat
}

func openDatabaseSink(cfg DatabaseConfig, lf lineFormat) (*databaseSink, error) {
	driver, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	table := orDefault(cfg.Table, DefaultLogTable)
	dateCol := orDefault(cfg.DateColumn, DefaultDateColumn)
	msgCol := orDefault(cfg.MessageColumn, DefaultMessageColumn)
	lvlCol := orDefault(cfg.LevelColumn, DefaultLevelColumn)
	for _, id := range []string{table, dateCol, msgCol, lvlCol} {
		if !identRe.MatchString(id) {
			return nil, fmt.Errorf("invalid sql identifier %q", id)
		}
	}

	if driver == "sqlite" {
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// SQLite prefers a single writer.
		db.SetMaxOpenConns(1)
	}

	if cfg.CreateTable {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := db.ExecContext(ctx, createTableSQL(driver, table, dateCol, msgCol, lvlCol))
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create log table: %w", err)
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)", table, msgCol, lvlCol, dateCol)
	return &databaseSink{db: db, insert: insert, fmt: lf}, nil
}

func sqlDriverName(d string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unknown database driver: %s", d)
	}
}

func createTableSQL(driver, table, dateCol, msgCol, lvlCol string) string {
	if driver == "mysql" {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	%s TEXT NOT NULL,
	%s VARCHAR(16) NOT NULL,
	%s DATETIME(6) NOT NULL
)`, table, msgCol, lvlCol, dateCol)
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL
)`, table, msgCol, lvlCol, dateCol)
}

func (s *databaseSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *databaseSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	e := decodeEntry(level, p)
	at := s.fmt.now()
	if s.fmt.utc {
		at = at.UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.insert, s.fmt.Body(e), e.Level, at); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *databaseSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
