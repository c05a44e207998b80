package notifier

import (
	"time"

	"notifylog/internal/storage"
)

// Config is the notifier configuration.
type Config struct {
	// DaysToWait is the suppression window in days. Zero or negative never
	// suppresses.
	DaysToWait int
	Sender     string
	// ReplyTo defaults to Sender.
	ReplyTo       string
	FailOnCorrupt bool
}

// Notification is a registered alert type.
type Notification struct {
	Name          string
	SubjectPrefix string
	Recipients    []string
	BodyIsHTML    bool
}

func (n Notification) clone() Notification {
	n.Recipients = append([]string(nil), n.Recipients...)
	return n
}

// Key identifies "the same" message. DateSent is deliberately not part of it.
type Key struct {
	Name          string
	SubjectSuffix string
	Content       string
}

// Message is one notification sent, or about to be.
type Message struct {
	NotificationName string
	SubjectSuffix    string
	Content          string
	DateSent         time.Time

	// Active marks the record for retention on the next save. Not persisted.
	Active bool
}

func (m Message) Key() Key {
	return Key{Name: m.NotificationName, SubjectSuffix: m.SubjectSuffix, Content: m.Content}
}

func (m Message) record() storage.Record {
	return storage.Record{
		Name:          m.NotificationName,
		SubjectSuffix: m.SubjectSuffix,
		Content:       m.Content,
		DateSent:      m.DateSent,
	}
}

func messageFromRecord(r storage.Record) *Message {
	return &Message{
		NotificationName: r.Name,
		SubjectSuffix:    r.SubjectSuffix,
		Content:          r.Content,
		DateSent:         r.DateSent,
	}
}

// Outcome is the result of SendNotification.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSent
	OutcomeSuppressed
	// OutcomeUnknown means the name was not registered; nothing was sent.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "failed"
	}
}

// Event types published on the bus.
const (
	EventSent          = "notify.sent"
	EventSuppressed    = "notify.suppressed"
	EventFailed        = "notify.failed"
	EventUnknown       = "notify.unknown"
	EventHistoryLoaded = "history.loaded"
	EventHistorySaved  = "history.saved"
)

// NotificationEvent is emitted on the event bus for notifier lifecycle events.
// Keep it small; Data may be logged/serialized by subscribers.
type NotificationEvent struct {
	Name          string    `json:"name,omitempty"`
	SubjectSuffix string    `json:"subject_suffix,omitempty"`
	MessageID     string    `json:"message_id,omitempty"`
	Records       int       `json:"records,omitempty"`
	At            time.Time `json:"at"`
	Error         string    `json:"error,omitempty"`
}
