// Package harvest implements the harvesting engine: a single-writer
// loop that walks a provider's paginated catalog, fetches detail
// records, and persists them durably with same-day resume support.
package harvest

import (
	"context"

	"github.com/gamecorpus/harvester/models"
)

// PagePolicy selects how the engine reacts to an empty or erroring
// catalog page.
type PagePolicy int

const (
	// StopOnEmptyPage ends pagination at the first empty page.
	StopOnEmptyPage PagePolicy = iota
	// SkipEmptyPage advances to the next page index instead; some
	// upstreams serve holes in otherwise full catalogs.
	SkipEmptyPage
)

// Descriptor identifies a source and its per-provider conventions.
type Descriptor struct {
	// Name keys the output directory and file names.
	Name string
	// LedgerFile is the progress file name inside the daily workspace.
	LedgerFile string
	// Policy picks the reaction to empty or erroring pages.
	Policy PagePolicy
	// Meta is carried into the session metadata on completion.
	Meta map[string]any
}

// Source is a provider adapter: one paginated catalog listing plus
// per-item detail lookups. Implementations handle authentication
// internally; the engine calls them from a single goroutine.
type Source interface {
	Describe() Descriptor

	// ListPage returns the item IDs on the 1-based page. An empty
	// slice with a nil error means the page had no items.
	ListPage(ctx context.Context, page int) ([]string, error)

	// FetchDetail returns the full record for an id from the most
	// recently listed page. Records the provider hides or ships in an
	// unusable shape come back wrapping ErrFiltered.
	FetchDetail(ctx context.Context, id string) (models.Record, error)
}

// ProgressFunc observes per-item progress: index is 1-based within the
// page and total is the page's item count. Callbacks must not block or
// reach back into the engine.
type ProgressFunc func(index, total int, label string)
