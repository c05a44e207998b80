// Package mailtest provides an in-memory mail.Transport for tests.
package mailtest

import (
	"context"
	"sync"

	"notifylog/internal/mail"
)

// Recorder captures sent messages. Set Err to make every Send fail.
type Recorder struct {
	mu     sync.Mutex
	sent   []mail.Message
	Err    error
	Closed bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, m mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	err := r.Err
	if err == nil {
		r.sent = append(r.sent, m)
	}
	r.mu.Unlock()
	return err
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.Closed = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) SetErr(err error) {
	r.mu.Lock()
	r.Err = err
	r.mu.Unlock()
}

func (r *Recorder) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Closed
}

// Sent returns a copy of every message delivered so far.
func (r *Recorder) Sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.sent...)
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
