package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PickupTransport writes every message as an RFC 5322 file into Dir.
// Files are named <id>.eml and appear atomically (temp file + rename).
type PickupTransport struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	closed bool
}

func NewPickupTransport(dir string) (*PickupTransport, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("mail: pickup directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mail: create pickup directory: %w", err)
	}
	return &PickupTransport{dir: dir, now: time.Now}, nil
}

func (t *PickupTransport) Dir() string { return t.dir }

func (t *PickupTransport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("mail: pickup transport closed")
	}
	if m.ID == "" {
		m.ID = NewID()
	}

	raw, err := render(m, t.now())
	if err != nil {
		return err
	}

	final := filepath.Join(t.dir, m.ID+".eml")
	tmp, err := os.CreateTemp(t.dir, ".pickup-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (t *PickupTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func render(m Message, at time.Time) ([]byte, error) {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	replyTo := m.ReplyTo
	if replyTo == "" {
		replyTo = m.From
	}
	ctype := "text/plain"
	if m.HTML {
		ctype = "text/html"
	}

	header("Message-ID", "<"+m.ID+"@notifylog>")
	header("Date", at.Format(time.RFC1123Z))
	header("From", m.From)
	header("Reply-To", replyTo)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("MIME-Version", "1.0")
	header("Content-Type", ctype+"; charset=utf-8")
	header("Content-Transfer-Encoding", "quoted-printable")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&b)
	if _, err := qp.Write([]byte(m.Body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	b.WriteString("\r\n")
	return b.Bytes(), nil
}
