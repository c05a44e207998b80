package notifier

import (
	"math"
	"time"
)

const day = 24 * time.Hour

type Verdict int

const (
	VerdictSend Verdict = iota
	VerdictSuppress
)

func (v Verdict) String() string {
	if v == VerdictSuppress {
		return "suppress"
	}
	return "send"
}

// Decision is the result of Engine.Evaluate. Match is the latest history
// record with the candidate's key, or nil.
type Decision struct {
	Verdict Verdict
	Match   *Message
	// Elapsed is candidate.DateSent - Match.DateSent; zero without a match.
	Elapsed time.Duration
}

// Engine decides whether a candidate repeats a recently sent message.
type Engine struct {
	DaysToWait int
}

// maxWindowDays is the largest DaysToWait that fits in a time.Duration.
const maxWindowDays = int64(math.MaxInt64 / int64(day))

// Window is the suppression window; zero when suppression is off. Values too
// large for a time.Duration saturate to the longest representable window.
func (e Engine) Window() time.Duration {
	if e.DaysToWait <= 0 {
		return 0
	}
	if int64(e.DaysToWait) > maxWindowDays {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(e.DaysToWait) * day
}

// Evaluate scans history for the latest record with the candidate's key.
// Among records with the same DateSent the first one in history order wins.
//
// On VerdictSuppress the match is marked active so it survives the next
// save. On VerdictSend nothing is mutated; the caller retires the match once
// the new message is actually delivered.
func (e Engine) Evaluate(history []*Message, candidate Message) Decision {
	key := candidate.Key()
	var match *Message
	for _, m := range history {
		if m == nil || m.Key() != key {
			continue
		}
		if match == nil || m.DateSent.After(match.DateSent) {
			match = m
		}
	}
	if match == nil {
		return Decision{Verdict: VerdictSend}
	}

	d := Decision{Verdict: VerdictSend, Match: match, Elapsed: candidate.DateSent.Sub(match.DateSent)}
	window := e.Window()
	if window <= 0 || d.Elapsed >= window {
		return d
	}
	match.Active = true
	d.Verdict = VerdictSuppress
	return d
}
