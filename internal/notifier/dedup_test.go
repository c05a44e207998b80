package notifier

import (
	"errors"
	"testing"
	"time"

	logx "notifylog/pkg/logx"
)

func msgAt(name, suffix, content string, at time.Time) *Message {
	return &Message{NotificationName: name, SubjectSuffix: suffix, Content: content, DateSent: at}
}

func TestEvaluateNoMatch(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hist := []*Message{msgAt("a", "s", "c", base)}
	d := Engine{DaysToWait: 7}.Evaluate(hist, *msgAt("a", "s", "other", base))
	if d.Verdict != VerdictSend || d.Match != nil {
		t.Fatalf("decision = %+v", d)
	}
	if hist[0].Active {
		t.Fatal("unrelated record activated")
	}
}

func TestEvaluateWindowBoundary(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Engine{DaysToWait: 7}

	prev := msgAt("a", "s", "c", base)
	d := e.Evaluate([]*Message{prev}, *msgAt("a", "s", "c", base.Add(7*day-time.Nanosecond)))
	if d.Verdict != VerdictSuppress || !prev.Active {
		t.Fatalf("just inside window: %+v active=%v", d, prev.Active)
	}

	prev = msgAt("a", "s", "c", base)
	d = e.Evaluate([]*Message{prev}, *msgAt("a", "s", "c", base.Add(7*day)))
	if d.Verdict != VerdictSend || d.Match != prev || d.Elapsed != 7*day {
		t.Fatalf("at window: %+v", d)
	}
	if prev.Active {
		t.Fatal("Evaluate must not touch the match on send")
	}
}

func TestEvaluatePicksLatestMatch(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old := msgAt("a", "s", "c", base)
	newer := msgAt("a", "s", "c", base.Add(5*day))
	d := Engine{DaysToWait: 7}.Evaluate([]*Message{newer, old}, *msgAt("a", "s", "c", base.Add(9*day)))
	if d.Verdict != VerdictSuppress || d.Match != newer {
		t.Fatalf("decision = %+v", d)
	}
	if old.Active {
		t.Fatal("older match activated")
	}
}

func TestEvaluateTieTakesFirst(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first, second := msgAt("a", "s", "c", at), msgAt("a", "s", "c", at)
	d := Engine{DaysToWait: 1}.Evaluate([]*Message{first, second}, *msgAt("a", "s", "c", at))
	if d.Match != first {
		t.Fatal("tie should resolve to the first record")
	}
}

func TestHugeWindowSaturates(t *testing.T) {
	e := Engine{DaysToWait: 200000}
	if w := e.Window(); w <= 0 {
		t.Fatalf("window = %v, want positive", w)
	}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := msgAt("a", "s", "c", at)
	d := e.Evaluate([]*Message{prev}, *msgAt("a", "s", "c", at.Add(time.Hour)))
	if d.Verdict != VerdictSuppress {
		t.Fatalf("verdict = %v, want suppress", d.Verdict)
	}
}

func TestCommitDropsSupersededRecord(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHistory(nil, false, logx.Nop())
	h.records = []*Message{msgAt("a", "s", "c", at), msgAt("b", "s", "c", at)}

	for i := 0; i < 3; i++ {
		cand := *msgAt("a", "s", "c", at)
		d := Engine{}.Evaluate(h.records, cand)
		h.commit(cand, d.Match)
	}
	if len(h.records) != 2 {
		t.Fatalf("records = %d, want 2", len(h.records))
	}
	if h.records[0].NotificationName != "b" || !h.records[1].Active {
		t.Fatalf("records = %+v", h.snapshot())
	}
}

func TestEvaluateNeverSuppress(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, days := range []int{0, -1} {
		prev := msgAt("a", "s", "c", at)
		d := Engine{DaysToWait: days}.Evaluate([]*Message{prev}, *msgAt("a", "s", "c", at))
		if d.Verdict != VerdictSend || d.Match != prev {
			t.Fatalf("days=%d: %+v", days, d)
		}
		if (Engine{DaysToWait: days}).Window() != 0 {
			t.Fatalf("days=%d: window should be zero", days)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	n := Notification{Name: "alerts", SubjectPrefix: "Disk Full:", Recipients: []string{"ops@example.com"}}
	if err := r.Register(n); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(n); !errors.Is(err, ErrDuplicateNotification) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := r.Register(Notification{Name: " ", Recipients: []string{"ops@example.com"}}); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("empty name: %v", err)
	}
	if err := r.Register(Notification{Name: "x"}); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("no recipients: %v", err)
	}
	if err := r.Register(Notification{Name: "y", Recipients: []string{"nope"}}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("bad recipient: %v", err)
	}

	got, ok := r.Resolve("alerts")
	if !ok || got.SubjectPrefix != "Disk Full:" {
		t.Fatalf("Resolve = %+v, %v", got, ok)
	}
	got.Recipients[0] = "mutated@example.com"
	again, _ := r.Resolve("alerts")
	if again.Recipients[0] != "ops@example.com" {
		t.Fatal("Resolve leaked internal state")
	}
	if _, ok := r.Resolve("Alerts"); ok {
		t.Fatal("names are case-sensitive")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "alerts" || r.Len() != 1 {
		t.Fatalf("names = %v", names)
	}
}
