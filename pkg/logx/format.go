package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimestampFormat is the layout used when FormatConfig.TimestampFormat is empty.
const DefaultTimestampFormat = "2006-01-02 15:04:05"

// lineFormat renders zerolog JSON events as plain-text lines.
type lineFormat struct {
	layout     string // "" omits the timestamp
	utc        bool
	keepEnds   bool
	lineEnding string
	now        func() time.Time
}

// entry is one decoded log event.
type entry struct {
	Level   string
	Message string
	Fields  string // "k=v k=v", sorted by key
}

func newLineFormat(cfg FormatConfig, now func() time.Time) lineFormat {
	layout := cfg.TimestampFormat
	switch strings.ToLower(strings.TrimSpace(layout)) {
	case "":
		layout = DefaultTimestampFormat
	case "none":
		layout = ""
	}
	le := cfg.LineEnding
	if le == "" {
		le = "\n"
	}
	if now == nil {
		now = time.Now
	}
	return lineFormat{layout: layout, utc: cfg.UTC, keepEnds: cfg.KeepLineEndings, lineEnding: le, now: now}
}

// Timestamp returns the current time rendered with the configured layout.
func (f lineFormat) Timestamp() string {
	if f.layout == "" {
		return ""
	}
	t := f.now()
	if f.utc {
		t = t.UTC()
	}
	return t.Format(f.layout)
}

// Line renders "<timestamp> [LEVEL] message k=v" without a trailing line ending.
func (f lineFormat) Line(level zerolog.Level, p []byte) string {
	e := decodeEntry(level, p)
	var b strings.Builder
	if ts := f.Timestamp(); ts != "" {
		b.WriteString(ts)
		b.WriteByte(' ')
	}
	if e.Level != "" {
		b.WriteString("[")
		b.WriteString(e.Level)
		b.WriteString("] ")
	}
	b.WriteString(f.Body(e))
	return b.String()
}

// Body renders the message and fields only, with line endings normalized.
func (f lineFormat) Body(e entry) string {
	s := e.Message
	if e.Fields != "" {
		if s != "" {
			s += " "
		}
		s += e.Fields
	}
	return f.FixLineEndings(s)
}

// FixLineEndings replaces every line ending other than the configured one.
// Two-byte endings are matched before single bytes so "\r\n" never becomes
// two line breaks.
func (f lineFormat) FixLineEndings(s string) string {
	if f.keepEnds {
		return s
	}
	pairs := make([]string, 0, 8)
	for _, nl := range []string{"\n\r", "\r\n", "\n", "\r"} {
		if nl == f.lineEnding {
			// Keep it intact, but still consume it so its bytes are not
			// rewritten by the single-byte rules.
			pairs = append(pairs, nl, nl)
			continue
		}
		pairs = append(pairs, nl, f.lineEnding)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// decodeEntry is a best-effort decode of a zerolog JSON line.
func decodeEntry(level zerolog.Level, p []byte) entry {
	e := entry{}
	if level != zerolog.NoLevel {
		e.Level = strings.ToUpper(level.String())
	}

	var m map[string]any
	if err := json.Unmarshal(trimSpace(p), &m); err != nil {
		e.Message = strings.TrimSpace(string(p))
		return e
	}

	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" && e.Level == "" {
		e.Level = strings.ToUpper(lvl)
	}
	e.Message, _ = m[zerolog.MessageFieldName].(string)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.CallerFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fmt.Sprint(m[k]))
	}
	e.Fields = b.String()
	return e
}

func trimSpace(b []byte) []byte {
	i := 0
	j := len(b)
	for i < j && (b[i] == ' ' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\n' || b[j-1] == '\r' || b[j-1] == '\t') {
		j--
	}
	return b[i:j]
}
