package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"notifylog/internal/eventbus"
	"notifylog/internal/mail"
	"notifylog/internal/storage"
	logx "notifylog/pkg/logx"
)

// Service sends registered notifications and suppresses repeats.
//
// Every call runs under one mutex: a notification is evaluated and dispatched
// before the next one is looked at. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	cfg       Config
	engine    Engine
	registry  *Registry
	history   *history
	transport mail.Transport
	store     storage.Store

	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	closed bool
}

type Option func(*Service)

func WithLogger(log logx.Logger) Option {
	return func(s *Service) {
		if !log.IsZero() {
			s.log = log
		}
	}
}

func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a notifier. store may be nil to keep history in memory only.
// The Service owns transport and store and closes both in Close.
func New(cfg Config, transport mail.Transport, store storage.Store, opts ...Option) (*Service, error) {
	if transport == nil {
		return nil, errors.New("notifier: nil mail transport")
	}
	sender, err := mail.ParseAddress(cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("%w: sender: %v", ErrInvalidAddress, err)
	}
	cfg.Sender = sender
	if strings.TrimSpace(cfg.ReplyTo) == "" {
		cfg.ReplyTo = sender
	} else if cfg.ReplyTo, err = mail.ParseAddress(cfg.ReplyTo); err != nil {
		return nil, fmt.Errorf("%w: reply_to: %v", ErrInvalidAddress, err)
	}

	s := &Service{
		cfg:       cfg,
		engine:    Engine{DaysToWait: cfg.DaysToWait},
		registry:  NewRegistry(),
		transport: transport,
		store:     store,
		log:       logx.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(logx.String("comp", "notifier"))
	s.history = newHistory(store, cfg.FailOnCorrupt, s.log)
	return s, nil
}

// Register adds a notification type. A name registered twice fails with
// ErrDuplicateNotification.
func (s *Service) Register(n Notification) error {
	if err := s.registry.Register(n); err != nil {
		return err
	}
	s.log.Debug("notification registered", logx.String("name", strings.TrimSpace(n.Name)))
	return nil
}

// RegisterNotification is Register with the fields spelled out.
func (s *Service) RegisterNotification(name, subjectPrefix string, recipients []string, bodyIsHTML bool) error {
	return s.Register(Notification{
		Name:          name,
		SubjectPrefix: subjectPrefix,
		Recipients:    recipients,
		BodyIsHTML:    bodyIsHTML,
	})
}

// RegisterSingle registers a plain-text notification with one recipient.
func (s *Service) RegisterSingle(name, subjectPrefix, recipient string) error {
	return s.RegisterNotification(name, subjectPrefix, []string{recipient}, false)
}

// Registry exposes the registered notification types.
func (s *Service) Registry() *Registry { return s.registry }

// SendNotification sends content under the named notification unless an
// identical message went out within the suppression window.
//
// An unregistered name is not an error: nothing is sent and OutcomeUnknown is
// returned. Transport errors are returned as is (wrapped) and the message is
// not recorded, so a retry is treated as new.
func (s *Service) SendNotification(ctx context.Context, name, content, subjectSuffix string) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return OutcomeFailed, ErrClosed
	}

	n, ok := s.registry.Resolve(name)
	if !ok {
		s.log.Debug("unknown notification dropped", logx.String("name", name))
		s.publish(EventUnknown, NotificationEvent{Name: name, SubjectSuffix: subjectSuffix})
		return OutcomeUnknown, nil
	}

	fresh, err := s.history.ensureLoaded(ctx)
	if err != nil {
		s.publish(EventFailed, NotificationEvent{Name: name, SubjectSuffix: subjectSuffix, Error: err.Error()})
		return OutcomeFailed, err
	}
	if fresh {
		s.publish(EventHistoryLoaded, NotificationEvent{Records: len(s.history.records)})
	}

	cand := Message{
		NotificationName: n.Name,
		SubjectSuffix:    subjectSuffix,
		Content:          content,
		DateSent:         s.now(),
	}
	d := s.engine.Evaluate(s.history.records, cand)
	if d.Verdict == VerdictSuppress {
		s.log.Debug("duplicate notification suppressed",
			logx.String("name", n.Name),
			logx.String("subject_suffix", subjectSuffix),
			logx.Duration("elapsed", d.Elapsed),
		)
		s.publish(EventSuppressed, NotificationEvent{Name: n.Name, SubjectSuffix: subjectSuffix})
		return OutcomeSuppressed, nil
	}

	msg := s.compose(n, cand)
	if err := s.transport.Send(ctx, msg); err != nil {
		s.log.Warn("notification send failed", logx.String("name", n.Name), logx.String("id", msg.ID), logx.Err(err))
		s.publish(EventFailed, NotificationEvent{Name: n.Name, SubjectSuffix: subjectSuffix, MessageID: msg.ID, Error: err.Error()})
		return OutcomeFailed, fmt.Errorf("send notification %q: %w", n.Name, err)
	}

	s.history.commit(cand, d.Match)
	s.log.Info("notification sent",
		logx.String("name", n.Name),
		logx.String("subject", msg.Subject),
		logx.Int("recipients", len(msg.To)),
		logx.String("id", msg.ID),
	)
	s.publish(EventSent, NotificationEvent{Name: n.Name, SubjectSuffix: subjectSuffix, MessageID: msg.ID})
	return OutcomeSent, nil
}

func (s *Service) compose(n Notification, m Message) mail.Message {
	return mail.Message{
		ID:      mail.NewID(),
		From:    s.cfg.Sender,
		ReplyTo: s.cfg.ReplyTo,
		To:      append([]string(nil), n.Recipients...),
		Subject: strings.TrimSpace(n.SubjectPrefix + " " + m.SubjectSuffix),
		Body:    m.Content,
		HTML:    n.BodyIsHTML,
	}
}

// History returns a copy of the in-memory history, oldest first. It is empty
// until the first SendNotification loads it.
func (s *Service) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.snapshot()
}

// Close saves the active history, then releases the transport and the store.
// Calling Close again is a no-op.
func (s *Service) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	saved, ok, err := s.history.save(ctx)
	switch {
	case err != nil:
		s.log.Error("history save failed", logx.Err(err))
		errs = append(errs, err)
	case ok:
		s.log.Debug("history saved", logx.Int("records", saved))
		s.publish(EventHistorySaved, NotificationEvent{Records: saved})
	}

	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) publish(typ string, ev NotificationEvent) {
	if s.bus == nil {
		return
	}
	now := s.now()
	ev.At = now
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
