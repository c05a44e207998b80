package notifier

import (
	"context"
	"errors"
	"fmt"

	"notifylog/internal/storage"
	logx "notifylog/pkg/logx"
)

type historyState int

const (
	historyUnloaded historyState = iota
	historyLoaded
)

// history is the in-memory sent-message log. It moves from unloaded to loaded
// on first use and is only ever saved from the loaded state. A nil store keeps
// it in memory.
type history struct {
	store         storage.Store
	failOnCorrupt bool
	log           logx.Logger

	state   historyState
	records []*Message
}

func newHistory(store storage.Store, failOnCorrupt bool, log logx.Logger) *history {
	return &history{store: store, failOnCorrupt: failOnCorrupt, log: log}
}

// ensureLoaded loads the persisted records once. fresh reports whether this
// call did the load. On error the history stays unloaded.
func (h *history) ensureLoaded(ctx context.Context) (fresh bool, err error) {
	if h.state == historyLoaded {
		return false, nil
	}
	if h.store == nil {
		h.state = historyLoaded
		return true, nil
	}

	recs, err := h.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrCorrupt) && !h.failOnCorrupt:
		h.log.Warn("history unreadable, starting empty", logx.Err(err))
		recs = nil
	default:
		return false, fmt.Errorf("load history: %w", err)
	}

	h.records = make([]*Message, 0, len(recs))
	for _, r := range recs {
		h.records = append(h.records, messageFromRecord(r))
	}
	h.state = historyLoaded
	h.log.Debug("history loaded", logx.Int("records", len(h.records)))
	return true, nil
}

// commit records a delivered message and drops the record it superseded,
// so a later match can only find the newest send for a key.
func (h *history) commit(sent Message, superseded *Message) {
	if superseded != nil {
		superseded.Active = false
		for i, m := range h.records {
			if m == superseded {
				h.records = append(h.records[:i], h.records[i+1:]...)
				break
			}
		}
	}
	sent.Active = true
	h.records = append(h.records, &sent)
}

func (h *history) active() []storage.Record {
	out := make([]storage.Record, 0, len(h.records))
	for _, m := range h.records {
		if m.Active {
			out = append(out, m.record())
		}
	}
	return out
}

// save persists the active records. It does nothing while unloaded, so a
// notifier that never sent anything leaves the stored history untouched.
func (h *history) save(ctx context.Context) (saved int, ok bool, err error) {
	if h.state != historyLoaded || h.store == nil {
		return 0, false, nil
	}
	recs := h.active()
	if err := h.store.Save(ctx, recs); err != nil {
		return 0, false, fmt.Errorf("save history: %w", err)
	}
	return len(recs), true, nil
}

func (h *history) snapshot() []Message {
	out := make([]Message, 0, len(h.records))
	for _, m := range h.records {
		out = append(out, *m)
	}
	return out
}
