package logx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"notifylog/internal/mail/mailtest"
)

func TestEmailSinkSendsOneMessagePerLine(t *testing.T) {
	rec := mailtest.NewRecorder()
	svc, log := New(Config{
		Console: ConsoleConfig{Enabled: true, MinLevel: "none"},
		Email: EmailConfig{
			Enabled:    true,
			RatePerSec: 100,
			From:       "app@example.com",
			Recipients: []string{"ops@example.com"},
			Subject:    "app log",
		},
		Format: FormatConfig{TimestampFormat: "none"},
	}, rec)

	log.Info("the quick brown fox jumped over the lazy dog.")
	log.Warn("Who are you people? Torchwood.")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sent := rec.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sent))
	}
	if sent[0].Body != "[INFO] the quick brown fox jumped over the lazy dog." {
		t.Fatalf("unexpected first body: %q", sent[0].Body)
	}
	if sent[1].Body != "[WARN] Who are you people? Torchwood." {
		t.Fatalf("unexpected second body: %q", sent[1].Body)
	}
	for _, m := range sent {
		if m.Subject != "app log" || m.ReplyTo != "app@example.com" || m.ID == "" {
			t.Fatalf("unexpected envelope: %+v", m)
		}
	}
}

func TestEmailSinkRateLimit(t *testing.T) {
	rec := mailtest.NewRecorder()
	lf := newLineFormat(FormatConfig{}, fixedClock())
	s, err := newEmailSink(EmailConfig{RatePerSec: 1, From: "a@example.com", Recipients: []string{"b@example.com"}}, lf, rec)
	if err != nil {
		t.Fatalf("newEmailSink: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Write([]byte(`{"level":"error","message":"boom"}`)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	_ = s.Close()

	if got := rec.Count(); got != 1 {
		t.Fatalf("expected 1 email under rate limit, got %d", got)
	}
	if s.Dropped() != 2 {
		t.Fatalf("expected 2 dropped lines, got %d", s.Dropped())
	}
	if !strings.HasPrefix(rec.Sent()[0].Subject, "Log message from ") {
		t.Fatalf("expected default subject, got %q", rec.Sent()[0].Subject)
	}
	// Writes after Close are ignored, not panics.
	_, _ = s.Write([]byte(`{"message":"late"}`))
}

func TestEmailSinkConfigErrors(t *testing.T) {
	lf := newLineFormat(FormatConfig{}, fixedClock())
	if _, err := newEmailSink(EmailConfig{From: "a@example.com", Recipients: []string{"b@example.com"}}, lf, nil); err == nil {
		t.Fatalf("expected error without transport")
	}
	if _, err := newEmailSink(EmailConfig{From: "a@example.com"}, lf, mailtest.NewRecorder()); err == nil {
		t.Fatalf("expected error without recipients")
	}
	if _, err := newEmailSink(EmailConfig{From: "nope", Recipients: []string{"b@example.com"}}, lf, mailtest.NewRecorder()); err == nil {
		t.Fatalf("expected error for invalid sender")
	}
}

func TestDigestSinkAccumulates(t *testing.T) {
	rec := mailtest.NewRecorder()
	svc, log := New(Config{
		Console: ConsoleConfig{Enabled: true, MinLevel: "none"},
		Digest: DigestConfig{
			Enabled:    true,
			From:       "app@example.com",
			ReplyTo:    "help@example.com",
			Recipients: []string{"ops@example.com"},
			Subject:    "nightly digest",
		},
		Format: FormatConfig{TimestampFormat: "none"},
	}, rec)

	log.Info("first")
	log.Error("second")
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	log.Info("third")
	_ = svc.Close()

	sent := rec.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 digests (flush + close), got %d", len(sent))
	}
	if sent[0].Body != "[INFO] first\n[ERROR] second\n" {
		t.Fatalf("unexpected digest body: %q", sent[0].Body)
	}
	if sent[0].ReplyTo != "help@example.com" {
		t.Fatalf("unexpected reply-to: %q", sent[0].ReplyTo)
	}
	if sent[1].Body != "[INFO] third\n" {
		t.Fatalf("unexpected close digest: %q", sent[1].Body)
	}
}

func TestDigestSinkKeepsBodyOnFailureAndSendsEmpty(t *testing.T) {
	rec := mailtest.NewRecorder()
	lf := newLineFormat(FormatConfig{TimestampFormat: "none"}, fixedClock())
	s, err := newDigestSink(DigestConfig{From: "a@example.com", Recipients: []string{"b@example.com"}, SendEmpty: true}, lf, rec)
	if err != nil {
		t.Fatalf("newDigestSink: %v", err)
	}
	_, _ = s.Write([]byte(`{"level":"info","message":"kept"}`))

	rec.SetErr(errors.New("smtp down"))
	if err := s.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error")
	}
	if s.Pending() != "[INFO] kept\n" {
		t.Fatalf("body should survive a failed flush, got %q", s.Pending())
	}

	rec.SetErr(nil)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	sent := rec.Sent()
	if len(sent) != 2 || sent[0].Body != "[INFO] kept\n" || sent[1].Body != "" {
		t.Fatalf("unexpected digests: %+v", sent)
	}
	_ = s.Close()
}

func TestDigestSinkRejectsBadSchedule(t *testing.T) {
	lf := newLineFormat(FormatConfig{}, fixedClock())
	_, err := newDigestSink(DigestConfig{From: "a@example.com", Recipients: []string{"b@example.com"}, Schedule: "every tuesday"}, lf, mailtest.NewRecorder())
	if err == nil {
		t.Fatalf("expected schedule parse error")
	}
}
