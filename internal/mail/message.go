package mail

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var ErrNoRecipients = errors.New("mail: message has no recipients")

// Message is a single outgoing email.
type Message struct {
	// ID correlates the message across logs, events and transports.
	ID      string
	From    string
	ReplyTo string
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// Transport delivers messages. Implementations own connection setup,
// authentication and timeouts; callers never retry.
type Transport interface {
	Send(ctx context.Context, m Message) error
	Close() error
}

// NewID returns a fresh message identifier.
func NewID() string { return uuid.NewString() }

// Validate checks the fields every transport relies on.
func (m Message) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return errors.New("mail: message has no sender")
	}
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}

// ParseAddress validates an RFC 5322 address and returns its bare form
// (display names are dropped).
func ParseAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty address")
	}
	a, err := netmail.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%q: %w", s, err)
	}
	return a.Address, nil
}

// NormalizeRecipients parses every address and returns the sorted,
// de-duplicated set. Address comparison is case-insensitive.
func NormalizeRecipients(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		k := strings.ToLower(addr)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}
