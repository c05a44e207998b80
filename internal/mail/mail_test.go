package mail

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/quotedprintable"
	netmail "net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNormalizeRecipients(t *testing.T) {
	got, err := NormalizeRecipients([]string{"ops@example.com", "Ops Team <dev@example.com>", "OPS@example.com"})
	if err != nil {
		t.Fatalf("NormalizeRecipients: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %v", got)
	}
	if got[0] != "dev@example.com" || got[1] != "ops@example.com" {
		t.Fatalf("unexpected order/content: %v", got)
	}

	if _, err := NormalizeRecipients([]string{"not an address"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestPickupTransportWritesMessage(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewPickupTransport(filepath.Join(dir, "pickup"))
	if err != nil {
		t.Fatalf("NewPickupTransport: %v", err)
	}
	tr.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	m := Message{
		ID:      "abc",
		From:    "alerts@example.com",
		To:      []string{"ops@example.com", "dev@example.com"},
		Subject: "Disk Full: host1 ✓",
		Body:    "disk ✓ = full",
	}
	if err := tr.Send(context.Background(), m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(tr.Dir(), "abc.eml"))
	if err != nil {
		t.Fatalf("read eml: %v", err)
	}
	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse eml: %v", err)
	}
	if got := msg.Header.Get("Reply-To"); got != "alerts@example.com" {
		t.Fatalf("reply-to should default to sender, got %q", got)
	}
	subj, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subj != m.Subject {
		t.Fatalf("subject mismatch: %q", subj)
	}
	body, _ := io.ReadAll(msg.Body)
	if !bytes.Contains(body, []byte("=E2=9C=93")) || !bytes.Contains(body, []byte("=3D")) {
		t.Fatalf("expected quoted-printable body, got %q", body)
	}
	decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got := strings.TrimRight(string(decoded), "\r\n"); got != m.Body {
		t.Fatalf("decoded body = %q, want %q", got, m.Body)
	}

	entries, _ := os.ReadDir(tr.Dir())
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, got %d entries", len(entries))
	}
}

func TestPickupTransportRejectsInvalid(t *testing.T) {
	tr, err := NewPickupTransport(t.TempDir())
	if err != nil {
		t.Fatalf("NewPickupTransport: %v", err)
	}
	if err := tr.Send(context.Background(), Message{From: "a@example.com"}); err != ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
	_ = tr.Close()
	if err := tr.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}}); err == nil {
		t.Fatalf("expected error after Close")
	}
}
