package logx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"notifylog/internal/mail"
)

// digestSink accumulates log lines into a single email body. The body is
// sent by Flush, by the optional cron schedule, and once more on Close.
type digestSink struct {
	env       envelope
	fmt       lineFormat
	mailer    mail.Transport
	sendEmpty bool

	mu  sync.Mutex
	buf strings.Builder

	// sendMu serializes Flush so scheduled and explicit flushes never race
	// on the same body.
	sendMu sync.Mutex

	sched *cron.Cron
}

func newDigestSink(cfg DigestConfig, lf lineFormat, mailer mail.Transport) (*digestSink, error) {
	if mailer == nil {
		return nil, errors.New("no mail transport configured")
	}
	env, err := newEnvelope(cfg.From, cfg.ReplyTo, cfg.Recipients, cfg.Subject)
	if err != nil {
		return nil, err
	}
	s := &digestSink{env: env, fmt: lf, mailer: mailer, sendEmpty: cfg.SendEmpty}

	if spec := strings.TrimSpace(cfg.Schedule); spec != "" {
		c := cron.New()
		if _, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
			defer cancel()
			if err := s.Flush(ctx); err != nil {
				fmt.Fprintf(Stderr(), "logx: digest flush failed: %v\n", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("digest schedule %q: %w", spec, err)
		}
		c.Start()
		s.sched = c
	}
	return s, nil
}

func (s *digestSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *digestSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	line := s.fmt.Line(level, p)
	s.mu.Lock()
	s.buf.WriteString(line)
	s.buf.WriteString(s.fmt.lineEnding)
	s.mu.Unlock()
	return len(p), nil
}

// Pending returns the body that the next Flush would send.
func (s *digestSink) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Flush sends the accumulated body and clears it. Nothing is sent for an
// empty body unless SendEmpty is set. On a transport error the body is kept
// for the next attempt.
func (s *digestSink) Flush(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	body := s.buf.String()
	s.buf.Reset()
	s.mu.Unlock()

	if body == "" && !s.sendEmpty {
		return nil
	}
	if err := s.mailer.Send(ctx, s.env.message(body)); err != nil {
		s.mu.Lock()
		rest := s.buf.String()
		s.buf.Reset()
		s.buf.WriteString(body)
		s.buf.WriteString(rest)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *digestSink) Close() error {
	if s.sched != nil {
		<-s.sched.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
	defer cancel()
	return s.Flush(ctx)
}
