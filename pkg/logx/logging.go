package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"notifylog/internal/mail"
)

// ---- Config ----

type Config struct {
	Level    string
	Format   FormatConfig
	Console  ConsoleConfig
	File     FileConfig
	Email    EmailConfig
	Digest   DigestConfig
	Database DatabaseConfig
}

// FormatConfig controls the plain-text line shared by file/email/digest/db sinks.
type FormatConfig struct {
	// TimestampFormat is a Go time layout. Empty uses DefaultTimestampFormat,
	// "none" omits the timestamp.
	TimestampFormat string
	UTC             bool
	// KeepLineEndings disables normalization of \r\n, \n\r, \n and \r to LineEnding.
	KeepLineEndings bool
	// LineEnding defaults to "\n".
	LineEnding string
}

type ConsoleConfig struct {
	Enabled bool
	// Stream is "stdout" (default), "stderr" or "both".
	Stream   string
	MinLevel string
}

type FileConfig struct {
	Enabled   bool
	Path      string
	Overwrite bool
	MinLevel  string
}

type EmailConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
	From       string
	ReplyTo    string
	Recipients []string
	Subject    string
}

type DigestConfig struct {
	Enabled    bool
	MinLevel   string
	From       string
	ReplyTo    string
	Recipients []string
	Subject    string
	// Schedule is a cron spec ("0 * * * *", "@hourly"). Empty means the
	// digest is only sent by Flush and on Close.
	Schedule  string
	SendEmpty bool
}

type DatabaseConfig struct {
	Enabled       bool
	MinLevel      string
	Driver        string
	DSN           string
	Table         string
	DateColumn    string
	MessageColumn string
	LevelColumn   string
	CreateTable   bool
}

// ---- Logger API ----

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field mutates a zerolog event. Fields are applied in order; later fields
// with the same key win in the plain-text sinks.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event) { e.Int64(k, v) }
}
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field        { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger is a lightweight structured logger.
//
// - If created from Service, it follows Service.Apply() swaps.
// - With() returns a derived logger with additional fixed fields.
// - Zero value is a safe no-op logger.
type Logger struct {
	svc     *Service
	base    zerolog.Logger
	hasBase bool

	fields []Field
}

// Nop returns a logger that never writes anything.
func Nop() Logger {
	return Logger{base: zerolog.Nop(), hasBase: true}
}

// NewWriter creates a standalone JSON logger writing to w. Handy in tests.
func NewWriter(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
	return Logger{base: zl, hasBase: true}
}

func (l Logger) IsZero() bool { return l.svc == nil && !l.hasBase && len(l.fields) == 0 }

func (l Logger) root() zerolog.Logger {
	if l.svc != nil {
		return l.svc.current()
	}
	if l.hasBase {
		return l.base
	}
	return zerolog.Nop()
}

// Enabled reports whether the given level would be logged.
func (l Logger) Enabled(level Level) bool {
	zl := l.root()
	return level >= zl.GetLevel()
}

func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	cp := l
	cp.fields = append(append([]Field(nil), l.fields...), fields...)
	return cp
}

func (l Logger) Trace(msg string, fields ...Field) { l.log(zerolog.TraceLevel, msg, fields...) }
func (l Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields...) }
func (l Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields...) }
func (l Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields...) }
func (l Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields...) }

func (l Logger) log(level zerolog.Level, msg string, fields ...Field) {
	zl := l.root()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}

	if caller := shortCaller(3); caller != "" {
		e.Str(zerolog.CallerFieldName, caller)
	}
	for _, f := range l.fields {
		if f != nil {
			f(e)
		}
	}
	for _, f := range fields {
		if f != nil {
			f(e)
		}
	}
	e.Msg(msg)
}

func shortCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok || file == "" {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// ---- Service (dynamic config + sinks) ----

type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // stores zerolog.Logger

	mailer mail.Transport
	now    func() time.Time

	// guarded by mu
	sinks  []sink
	digest *digestSink
}

// sink is a zerolog writer that owns resources.
type sink interface {
	zerolog.LevelWriter
	Close() error
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for plain-text timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates the logging service, applies cfg immediately and returns both
// the Service and a root Logger. mailer may be nil when no email sinks are
// configured.
func New(cfg Config, mailer mail.Transport, opts ...Option) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = consoleTimeFormat

	s := &Service{cfg: cfg, mailer: mailer, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	// Safe bootstrap root.
	s.root.Store(zerolog.New(newConsoleWriter(Stdout())).Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger())

	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	v := s.root.Load()
	if v == nil {
		return zerolog.Nop()
	}
	zl, ok := v.(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Apply swaps sinks and levels at runtime. Sinks from the previous config
// are closed after the swap (a pending digest is sent at that point).
// It is safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	lf := newLineFormat(cfg.Format, s.now)

	var (
		next   []sink
		digest *digestSink
	)
	writers := make([]io.Writer, 0, 5)

	if cfg.Console.Enabled {
		for _, w := range consoleStreams(cfg.Console.Stream) {
			writers = append(writers, filtered(zerolog.LevelWriterAdapter{Writer: newConsoleWriter(w)}, cfg.Console.MinLevel))
		}
	}
	if cfg.File.Enabled {
		fs, err := openFileSink(cfg.File, lf)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: file sink disabled: %v\n", err)
		} else {
			next = append(next, fs)
			writers = append(writers, filtered(fs, cfg.File.MinLevel))
		}
	}
	if cfg.Email.Enabled {
		es, err := newEmailSink(cfg.Email, lf, s.mailer)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: email sink disabled: %v\n", err)
		} else {
			next = append(next, es)
			writers = append(writers, filtered(es, cfg.Email.MinLevel))
		}
	}
	if cfg.Digest.Enabled {
		ds, err := newDigestSink(cfg.Digest, lf, s.mailer)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: digest sink disabled: %v\n", err)
		} else {
			next = append(next, ds)
			digest = ds
			writers = append(writers, filtered(ds, cfg.Digest.MinLevel))
		}
	}
	if cfg.Database.Enabled {
		ds, err := openDatabaseSink(cfg.Database, lf)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: database sink disabled: %v\n", err)
		} else {
			next = append(next, ds)
			writers = append(writers, filtered(ds, cfg.Database.MinLevel))
		}
	}

	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(Stdout()))
	}

	lvl := parseLevel(cfg.Level, zerolog.InfoLevel)
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	s.root.Store(zl)

	prev := s.sinks
	s.sinks = next
	s.digest = digest
	closeSinks(prev)
}

// Flush sends the pending digest email now, if a digest sink is configured.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	d := s.digest
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	return d.Flush(ctx)
}

// Close flushes and releases every sink. The root logger falls back to the
// console afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	prev := s.sinks
	s.sinks = nil
	s.digest = nil
	s.root.Store(zerolog.New(newConsoleWriter(Stderr())).Level(parseLevel(s.cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger())
	s.mu.Unlock()

	return closeSinks(prev)
}

func closeSinks(sinks []sink) error {
	var first error
	for _, sk := range sinks {
		if err := sk.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// filtered applies a per-sink minimum level. "none" disables the sink.
func filtered(w zerolog.LevelWriter, minLevel string) zerolog.LevelWriter {
	if strings.TrimSpace(minLevel) == "" {
		return w
	}
	return &zerolog.FilteredLevelWriter{Writer: w, Level: parseLevel(minLevel, zerolog.TraceLevel)}
}

func consoleStreams(stream string) []io.Writer {
	switch strings.ToLower(strings.TrimSpace(stream)) {
	case "stderr":
		return []io.Writer{Stderr()}
	case "both":
		return []io.Writer{Stdout(), Stderr()}
	default:
		return []io.Writer{Stdout()}
	}
}

func newConsoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	cw.FormatCaller = func(i interface{}) string {
		s, _ := i.(string)
		return s
	}
	return cw
}

// ParseLevel exposes the level vocabulary used by the config file.
func ParseLevel(s string) (Level, bool) {
	l := parseLevel(s, zerolog.NoLevel)
	return l, l != zerolog.NoLevel
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "NONE", "OFF":
		return zerolog.Disabled
	default:
		return def
	}
}

// Stdout returns the configured stdout sink.
func Stdout() io.Writer { return os.Stdout }

// Stderr returns the configured stderr sink.
func Stderr() io.Writer { return os.Stderr }
