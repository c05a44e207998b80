package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const documentVersion = 1

// document is the on-disk (and in-redis) history layout.
type document struct {
	Version int          `json:"version"`
	Records []recordJSON `json:"records"`
}

type recordJSON struct {
	Name          string `json:"name"`
	SubjectSuffix string `json:"subject_suffix"`
	Content       string `json:"content"`
	// DateSent is RFC 3339 with nanoseconds and an explicit offset.
	DateSent string `json:"date_sent"`
}

func encodeDocument(recs []Record) ([]byte, error) {
	doc := document{Version: documentVersion, Records: make([]recordJSON, 0, len(recs))}
	for _, r := range recs {
		doc.Records = append(doc.Records, recordJSON{
			Name:          r.Name,
			SubjectSuffix: r.SubjectSuffix,
			Content:       r.Content,
			DateSent:      r.DateSent.Format(time.RFC3339Nano),
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// decodeDocument parses a persisted history. Empty input is an empty history;
// anything else that does not decode cleanly is ErrCorrupt.
func decodeDocument(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Record{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, doc.Version)
	}

	out := make([]Record, 0, len(doc.Records))
	for i, r := range doc.Records {
		rec, err := r.record()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorrupt, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r recordJSON) record() (Record, error) {
	if r.Name == "" {
		return Record{}, fmt.Errorf("missing name")
	}
	at, err := time.Parse(time.RFC3339Nano, r.DateSent)
	if err != nil {
		return Record{}, fmt.Errorf("date_sent: %w", err)
	}
	return Record{Name: r.Name, SubjectSuffix: r.SubjectSuffix, Content: r.Content, DateSent: at}, nil
}
