package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Ledger tracks which item IDs have already been persisted for the
// current day. IDs live in memory for lookups and in an append-only
// file for resumption; an ID is only visible after its line is durable.
type Ledger struct {
	path string
	sink *Sink

	mu   sync.Mutex
	done map[string]struct{}
}

// OpenLedger loads the ledger file at path if it exists. Lines are
// trimmed and blanks dropped; a missing file means an empty ledger.
func OpenLedger(path string, sink *Sink) (*Ledger, error) {
	l := &Ledger{
		path: path,
		sink: sink,
		done: make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		l.done[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return l, nil
}

// Done reports whether id was already persisted.
func (l *Ledger) Done(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[id]
	return ok
}

// MarkDone records id, appending it durably before updating the
// in-memory set so a ledger entry always refers to persisted data.
func (l *Ledger) MarkDone(id string) error {
	if err := l.sink.AppendLine(l.path, []byte(id)); err != nil {
		return fmt.Errorf("mark %s done: %w", id, err)
	}

	l.mu.Lock()
	l.done[id] = struct{}{}
	l.mu.Unlock()
	return nil
}

// Len returns the number of IDs marked done.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}
