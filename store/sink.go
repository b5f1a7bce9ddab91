// Package store provides the on-disk layout for harvest sessions:
// per-day workspaces, crash-safe file writes, and the append-only
// progress ledger.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink performs crash-safe file writes. Appends are staged through a
// synced temp file in the target's directory so a reader of the target
// never observes a torn line; replacements go through temp-then-rename.
// The zero Sink is ready to use.
type Sink struct {
	// failAfterStage runs between staging the temp file and touching
	// the target. Test seam for crash scenarios.
	failAfterStage func() error
}

// AppendLine durably appends line plus a trailing newline to the file
// at path, creating the file if needed. On any failure before the
// append step the target is untouched.
func (s *Sink) AppendLine(path string, line []byte) error {
	base := filepath.Base(path)

	staged := make([]byte, 0, len(line)+1)
	staged = append(staged, line...)
	staged = append(staged, '\n')

	tmpName, err := s.stage(filepath.Dir(path), staged)
	if err != nil {
		return fmt.Errorf("stage append for %s: %w", base, err)
	}
	defer os.Remove(tmpName)

	if s.failAfterStage != nil {
		if err := s.failAfterStage(); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read staged line for %s: %w", base, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", base, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("append to %s: %w", base, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", base, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", base, err)
	}
	return nil
}

// ReplaceFile atomically replaces the file at path with data. The
// previous content stays intact until the rename commits.
func (s *Sink) ReplaceFile(path string, data []byte) error {
	base := filepath.Base(path)

	tmpName, err := s.stage(filepath.Dir(path), data)
	if err != nil {
		return fmt.Errorf("stage replacement for %s: %w", base, err)
	}
	defer os.Remove(tmpName)

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", base, err)
	}
	return nil
}

// stage writes data to a synced temp file in dir and returns its name.
func (s *Sink) stage(dir string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".stage-*.tmp")
	if err != nil {
		return "", err
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
