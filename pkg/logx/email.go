package logx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"notifylog/internal/mail"
)

const (
	emailQueueSize   = 256
	emailSendTimeout = 30 * time.Second
)

// DefaultSubject is the subject used by the email sinks when none is configured.
func DefaultSubject() string {
	return "Log message from " + filepath.Base(os.Args[0])
}

// envelope holds the addressing shared by the email and digest sinks.
type envelope struct {
	from    string
	replyTo string
	to      []string
	subject string
}

func newEnvelope(from, replyTo string, recipients []string, subject string) (envelope, error) {
	f, err := mail.ParseAddress(from)
	if err != nil {
		return envelope{}, fmt.Errorf("sender: %w", err)
	}
	to, err := mail.NormalizeRecipients(recipients)
	if err != nil {
		return envelope{}, fmt.Errorf("recipients: %w", err)
	}
	if len(to) == 0 {
		return envelope{}, mail.ErrNoRecipients
	}
	rt := f
	if strings.TrimSpace(replyTo) != "" {
		if rt, err = mail.ParseAddress(replyTo); err != nil {
			return envelope{}, fmt.Errorf("reply_to: %w", err)
		}
	}
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject()
	}
	return envelope{from: f, replyTo: rt, to: to, subject: subject}, nil
}

func (e envelope) message(body string) mail.Message {
	return mail.Message{
		ID:      mail.NewID(),
		From:    e.from,
		ReplyTo: e.replyTo,
		To:      append([]string(nil), e.to...),
		Subject: e.subject,
		Body:    body,
	}
}

// emailSink sends one email per log line. Sending happens on a background
// worker so a slow transport never stalls logging; lines over the rate limit
// or over the queue capacity are dropped.
type emailSink struct {
	env     envelope
	fmt     lineFormat
	mailer  mail.Transport
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	queue  chan mail.Message
	wg     sync.WaitGroup

	dropped atomic.Uint64
}

func newEmailSink(cfg EmailConfig, lf lineFormat, mailer mail.Transport) (*emailSink, error) {
	if mailer == nil {
		return nil, errors.New("no mail transport configured")
	}
	env, err := newEnvelope(cfg.From, cfg.ReplyTo, cfg.Recipients, cfg.Subject)
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	s := &emailSink{
		env:     env,
		fmt:     lf,
		mailer:  mailer,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		queue:   make(chan mail.Message, emailQueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker()
	}()
	return s, nil
}

func (s *emailSink) worker() {
	for m := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		err := s.mailer.Send(ctx, m)
		cancel()
		if err != nil {
			// Never log through the logger here: it would feed back into this sink.
			fmt.Fprintf(Stderr(), "logx: email sink send failed: %v\n", err)
		}
	}
}

func (s *emailSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *emailSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if !s.limiter.Allow() {
		s.dropped.Add(1)
		return len(p), nil
	}
	m := s.env.message(s.fmt.Line(level, p))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(p), nil
	}
	select {
	case s.queue <- m:
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped reports how many lines were discarded by the rate limit or a full queue.
func (s *emailSink) Dropped() uint64 { return s.dropped.Load() }

// Close stops intake and waits for queued emails to be handed to the transport.
func (s *emailSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
