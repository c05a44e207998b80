package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "notifylog/pkg/logx"
)

// DefaultHistoryFile is used by the file driver when no path is configured.
const DefaultHistoryFile = "notifylog.notify.dat"

// fileStore keeps the history in a single JSON document.
//
// Save writes <path>.tmp-*, fsyncs it, renames it over <path> and fsyncs the
// directory, so a crash mid-write leaves the previous document intact.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	path   string
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultHistoryFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log.With(logx.String("path", path)), path: path}, nil
}

func (s *fileStore) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("history store closed")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug("no history file yet")
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	return decodeDocument(data)
}

func (s *fileStore) Save(ctx context.Context, recs []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeDocument(recs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("history store closed")
	}
	return writeFileAtomic(s.path, data, 0o600)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return err
	}
	// The rename is only durable once the directory entry is on disk.
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync history dir: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
