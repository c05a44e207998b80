package logx

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func TestDatabaseSinkInsertsRows(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "logs.db")
	svc, log := New(Config{
		Level:   "debug",
		Console: ConsoleConfig{Enabled: true, MinLevel: "none"},
		Database: DatabaseConfig{
			Enabled:     true,
			Driver:      "sqlite",
			DSN:         dsn,
			CreateTable: true,
			MinLevel:    "info",
		},
	}, nil, WithClock(fixedClock()))

	log.Debug("skipped")
	log.Warn("disk full", String("host", "h1"))
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM SysLog`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}

	var msg, lvl, date string
	err = db.QueryRowContext(context.Background(),
		`SELECT log_message, log_level, log_date_recorded FROM SysLog`).Scan(&msg, &lvl, &date)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if msg != "disk full host=h1" || lvl != "WARN" || date == "" {
		t.Fatalf("unexpected row: %q %q %q", msg, lvl, date)
	}
}

func TestDatabaseSinkValidatesIdentifiers(t *testing.T) {
	lf := newLineFormat(FormatConfig{}, fixedClock())
	_, err := openDatabaseSink(DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db"), Table: "logs; DROP TABLE x"}, lf)
	if err == nil {
		t.Fatalf("expected identifier validation error")
	}
	if _, err := openDatabaseSink(DatabaseConfig{Driver: "oracle", DSN: "x"}, lf); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
