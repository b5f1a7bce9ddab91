// Package models defines data structures shared across the harvester.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one harvested catalog item, kept exactly as the provider
// sent it. The engine persists records without interpreting them;
// adapters use the field accessors for the few keys they must inspect.
type Record []byte

// Compact returns the record as a single JSON line with insignificant
// whitespace removed.
func (r Record) Compact() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, r); err != nil {
		return nil, fmt.Errorf("compact record: %w", err)
	}
	return buf.Bytes(), nil
}

// Int reads a top-level numeric field as an int64.
func (r Record) Int(key string) (int64, bool) {
	raw, ok := r.field(key)
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// Str reads a top-level string field.
func (r Record) Str(key string) (string, bool) {
	raw, ok := r.field(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (r Record) field(key string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r, &fields); err != nil {
		return nil, false
	}
	raw, ok := fields[key]
	return raw, ok
}

// SessionMetadata is the completion summary written to metadata.json at
// the end of every run, whole-file replaced so readers never see a
// partial document.
type SessionMetadata struct {
	Provider     string         `json:"provider"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	PagesScraped int            `json:"pages_scraped"`
	ItemsScraped int            `json:"items_scraped"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// RunResult holds the overall result of a harvest run.
type RunResult struct {
	Provider     string
	OutputDir    string
	StartTime    time.Time
	EndTime      time.Time
	PagesScraped int
	NewItems     int
	Duplicates   int
	Filtered     int
	Failed       int
	ErrorsByType map[string]int
}
