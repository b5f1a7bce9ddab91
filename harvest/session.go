package harvest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/models"
	"github.com/gamecorpus/harvester/ratelimit"
	"github.com/gamecorpus/harvester/store"
)

// Session owns the per-run state: the locked daily workspace, the
// progress ledger, the shared request limiter, and the durable error
// trail. Open it, run the engine, Close it.
type Session struct {
	desc    Descriptor
	ws      *store.Workspace
	sink    *store.Sink
	ledger  *store.Ledger
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	start   time.Time

	closeOnce sync.Once
	closeErr  error
}

// OpenSession locks today's workspace for the source and loads its
// ledger. Failures here are fatal to the run; nothing has been fetched
// yet.
func OpenSession(cfg *config.Config, desc Descriptor, limiter *ratelimit.Limiter, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.New(0)
	}

	ws, err := store.OpenWorkspace(cfg.DataDir, desc.Name, time.Now())
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	sink := &store.Sink{}
	ledger, err := store.OpenLedger(ws.Path(desc.LedgerFile), sink)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	logger.Info("session opened",
		slog.String("provider", desc.Name),
		slog.String("dir", ws.Dir()),
		slog.Int("already_done", ledger.Len()),
	)

	return &Session{
		desc:    desc,
		ws:      ws,
		sink:    sink,
		ledger:  ledger,
		limiter: limiter,
		logger:  logger,
		start:   time.Now(),
	}, nil
}

// Close releases the workspace lock. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ws.Close()
	})
	return s.closeErr
}

// Dir returns the daily workspace directory.
func (s *Session) Dir() string {
	return s.ws.Dir()
}

// Done reports whether id was already persisted today.
func (s *Session) Done(id string) bool {
	return s.ledger.Done(id)
}

// DoneCount returns the number of ids persisted today, including
// earlier runs.
func (s *Session) DoneCount() int {
	return s.ledger.Len()
}

// Persist durably appends rec to the data file, then marks id done.
// The append happens first so a ledger entry always points at durable
// data; a crash between the two steps costs at most one duplicate line
// on resume, never a loss.
func (s *Session) Persist(id string, rec models.Record) error {
	line, err := rec.Compact()
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	if err := s.sink.AppendLine(s.ws.DataFile(), line); err != nil {
		return fmt.Errorf("append record %s: %w", id, err)
	}
	return s.ledger.MarkDone(id)
}

// LogError appends a timestamped line to the session error log and
// mirrors it to the logger. The returned error is non-nil only when
// the log itself cannot be written, which ends the run.
func (s *Session) LogError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn(msg, slog.String("provider", s.desc.Name))

	line := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04:05"), msg)
	if err := s.sink.AppendLine(s.ws.ErrorLog(), []byte(line)); err != nil {
		return fmt.Errorf("error log: %w", err)
	}
	return nil
}

// WriteMetadata replaces metadata.json with the session summary.
func (s *Session) WriteMetadata(md models.SessionMetadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.sink.ReplaceFile(s.ws.MetadataPath(), data); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
