package logx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultLogFile is used when the file sink is enabled without a path.
const DefaultLogFile = "./notifylog.log"

// fileSink writes plain-text lines to a file.
type fileSink struct {
	mu  sync.Mutex
	f   *os.File
	fmt lineFormat
}

func openFileSink(cfg FileConfig, lf lineFormat) (*fileSink, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY
	if cfg.Overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f, fmt: lf}, nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *fileSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	line := s.fmt.Line(level, p) + s.fmt.lineEnding

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, errors.New("log file closed")
	}
	if _, err := s.f.WriteString(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
