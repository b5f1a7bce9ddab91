package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFile is the session summary file name inside a workspace.
const MetadataFile = "metadata.json"

const (
	lockFile     = ".harvest.lock"
	staleLockAge = 2 * time.Hour
)

// Workspace is the per-provider, per-day output directory. A new
// calendar day means a fresh directory and therefore a fresh ledger;
// reopening the same day resumes it. A lock file keeps two sessions
// from appending to the same directory at once.
type Workspace struct {
	dir      string
	provider string
	day      string
	lockPath string
}

// OpenWorkspace creates the daily directory for provider under root if
// needed and takes the session lock. now decides the calendar day.
func OpenWorkspace(root, provider string, now time.Time) (*Workspace, error) {
	day := now.Format("2006-01-02")
	dir := filepath.Join(root, provider, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", dir, err)
	}

	w := &Workspace{
		dir:      dir,
		provider: provider,
		day:      day,
		lockPath: filepath.Join(dir, lockFile),
	}
	if err := w.acquireLock(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) acquireLock() error {
	payload := fmt.Appendf(nil, "{\"pid\":%d,\"started\":%q}\n",
		os.Getpid(), time.Now().Format(time.RFC3339))

	f, err := os.OpenFile(w.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		if _, werr := f.Write(payload); werr != nil {
			f.Close()
			return fmt.Errorf("write lock: %w", werr)
		}
		return f.Close()
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create lock: %w", err)
	}

	info, statErr := os.Stat(w.lockPath)
	if statErr == nil && time.Since(info.ModTime()) < staleLockAge {
		return fmt.Errorf("workspace %s is locked by another session", w.dir)
	}

	// The holder is gone; take the lock over.
	if err := os.WriteFile(w.lockPath, payload, 0o644); err != nil {
		return fmt.Errorf("take over stale lock: %w", err)
	}
	return nil
}

// Close releases the session lock.
func (w *Workspace) Close() error {
	if err := os.Remove(w.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Day returns the calendar day the workspace belongs to.
func (w *Workspace) Day() string {
	return w.day
}

// Path returns the absolute path for a file name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// DataFile returns the JSONL output path for the provider.
func (w *Workspace) DataFile() string {
	return w.Path(w.provider + "_data.jsonl")
}

// ErrorLog returns the append-only error trail path.
func (w *Workspace) ErrorLog() string {
	return w.Path(w.provider + "_errors.log")
}

// MetadataPath returns the session summary path.
func (w *Workspace) MetadataPath() string {
	return w.Path(MetadataFile)
}
