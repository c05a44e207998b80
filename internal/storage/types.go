package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrCorrupt is returned by Load when persisted history exists but cannot
	// be decoded. Callers decide whether to start over or surface it.
	ErrCorrupt = errors.New("history corrupt")
)

// Record is one sent notification as persisted.
type Record struct {
	Name          string
	SubjectSuffix string
	Content       string
	DateSent      time.Time
}

// Store is the persistence API used by the notifier.
type Store interface {
	// Load returns the persisted records in save order. A history that was
	// never saved yields an empty slice and no error.
	Load(ctx context.Context) ([]Record, error)
	// Save replaces the persisted records with recs.
	Save(ctx context.Context, recs []Record) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": JSON document at Path
//   - "sqlite": SQLite database at Path
//   - "redis": key Key on the server at Addr
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Addr     string // redis only
	Password string // redis only
	DB       int    // redis only
	Key      string // redis only; defaults to DefaultRedisKey
}
