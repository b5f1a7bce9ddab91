package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/models"
)

// Engine drives one harvest run: it walks the source's pages, fetches
// the detail record for every id the ledger has not seen today, and
// persists each record before marking it done. All source calls go
// through the session limiter, so the provider sees at most one
// request per configured interval no matter how the pages are shaped.
type Engine struct {
	cfg     *config.Config
	src     Source
	session *Session
	logger  *slog.Logger
	metrics *Metrics

	// OnProgress, when set, is called after each item is resolved,
	// whether it was skipped, persisted, or failed. It must not block
	// and must not touch the session.
	OnProgress ProgressFunc

	sleep func(context.Context, time.Duration)
}

// NewEngine wires a source and an open session into a runnable engine.
func NewEngine(cfg *config.Config, src Source, session *Session, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		src:     src,
		session: session,
		logger:  logger,
		metrics: NewMetrics(),
		sleep:   sleepCtx,
	}
}

// Metrics exposes the engine's metric bundle for serving.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Run executes the harvest until the page budget is spent, the source
// reports the end of its catalog, or ctx is cancelled. Cancellation is
// a normal stop: everything persisted so far stays persisted and the
// run still writes its metadata. The returned error is non-nil only
// for fatal conditions, meaning the local filesystem refused a write.
func (e *Engine) Run(ctx context.Context) (*models.RunResult, error) {
	desc := e.src.Describe()
	res := &models.RunResult{
		Provider:     desc.Name,
		OutputDir:    e.session.Dir(),
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}

	e.logger.Info("harvest starting",
		slog.String("provider", desc.Name),
		slog.Int("pages", e.cfg.Pages),
		slog.Duration("item_delay", e.session.limiter.Interval()),
	)

pages:
	for page := 1; page <= e.cfg.Pages; page++ {
		if ctx.Err() != nil {
			break
		}

		ids, err := e.listPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.countError(res, err)
			if lerr := e.session.LogError("page %d: list failed: %v", page, err); lerr != nil {
				return res, lerr
			}
			ids = nil
		}

		// Every page the loop reaches counts, empty or not; a soft
		// stop at page 3 of 10 reports three pages scraped.
		res.PagesScraped++
		e.metrics.IncPage()

		if len(ids) == 0 {
			switch desc.Policy {
			case SkipEmptyPage:
				e.logger.Debug("empty page, continuing", slog.Int("page", page))
				continue
			default:
				e.logger.Info("empty page, end of catalog", slog.Int("page", page))
				break pages
			}
		}

		e.logger.Info("page listed",
			slog.Int("page", page),
			slog.Int("items", len(ids)),
		)

		newOnPage, err := e.harvestPage(ctx, page, ids, res)
		if err != nil {
			return res, err
		}
		if ctx.Err() != nil {
			break
		}

		// Pages that produced nothing new were already harvested
		// today; rushing through them costs the provider no requests.
		if page < e.cfg.Pages && newOnPage > 0 && e.cfg.PageDelay > 0 {
			e.logger.Debug("page delay", slog.Duration("delay", e.cfg.PageDelay))
			e.sleep(ctx, e.cfg.PageDelay)
		}
	}

	res.EndTime = time.Now()

	md := models.SessionMetadata{
		Provider:     desc.Name,
		StartTime:    res.StartTime,
		EndTime:      res.EndTime,
		PagesScraped: res.PagesScraped,
		ItemsScraped: e.session.DoneCount(),
		Extra:        desc.Meta,
	}
	if err := e.session.WriteMetadata(md); err != nil {
		return res, err
	}

	e.logger.Info("harvest finished",
		slog.String("provider", desc.Name),
		slog.Int("pages", res.PagesScraped),
		slog.Int("new_items", res.NewItems),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("failed", res.Failed),
		slog.Duration("elapsed", res.EndTime.Sub(res.StartTime).Round(time.Millisecond)),
	)
	return res, nil
}

// harvestPage fetches and persists every id on one page. It returns
// the number of newly persisted items. A non-nil error is fatal; per
// item failures are logged, counted, and skipped.
func (e *Engine) harvestPage(ctx context.Context, page int, ids []string, res *models.RunResult) (int, error) {
	label := fmt.Sprintf("page %d", page)
	newOnPage := 0

	for i, id := range ids {
		if ctx.Err() != nil {
			return newOnPage, nil
		}

		persisted, err := e.processItem(ctx, id, res)
		if err != nil {
			return newOnPage, err
		}
		if persisted {
			newOnPage++
		}
		if ctx.Err() != nil {
			return newOnPage, nil
		}
		if e.OnProgress != nil {
			e.OnProgress(i+1, len(ids), label)
		}
	}
	return newOnPage, nil
}

// processItem handles one id and reports whether a new record was
// persisted. A non-nil error is fatal to the run.
func (e *Engine) processItem(ctx context.Context, id string, res *models.RunResult) (bool, error) {
	if e.session.Done(id) {
		res.Duplicates++
		e.metrics.IncItem("duplicate")
		return false, nil
	}

	if err := e.session.limiter.Wait(ctx); err != nil {
		return false, nil
	}

	rec, err := e.fetchDetail(ctx, id)
	switch {
	case errors.Is(err, ErrFiltered):
		// The provider hides this record on purpose. Not an error,
		// and deliberately left out of the ledger so a later run
		// checks again.
		res.Filtered++
		e.metrics.IncItem("filtered")
		e.logger.Debug("record filtered", slog.String("id", id))
		return false, nil
	case err != nil:
		if ctx.Err() != nil {
			return false, nil
		}
		res.Failed++
		e.metrics.IncItem("failed")
		e.countError(res, err)
		if lerr := e.session.LogError("item %s: %v", id, err); lerr != nil {
			return false, lerr
		}
		return false, nil
	}

	if err := e.session.Persist(id, rec); err != nil {
		return false, err
	}
	res.NewItems++
	e.metrics.IncItem("new")
	return true, nil
}

func (e *Engine) listPage(ctx context.Context, page int) ([]string, error) {
	e.metrics.IncSourceCall("list")
	start := time.Now()
	ids, err := e.src.ListPage(ctx, page)
	e.metrics.ObserveSourceCall(time.Since(start))
	return ids, err
}

func (e *Engine) fetchDetail(ctx context.Context, id string) (models.Record, error) {
	e.metrics.IncSourceCall("detail")
	start := time.Now()
	rec, err := e.src.FetchDetail(ctx, id)
	e.metrics.ObserveSourceCall(time.Since(start))
	return rec, err
}

func (e *Engine) countError(res *models.RunResult, err error) {
	label := errorTypeLabel(err)
	res.ErrorsByType[label]++
	e.metrics.IncError(label)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
