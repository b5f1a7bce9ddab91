package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/harvest"
	"github.com/gamecorpus/harvester/models"
	"github.com/gamecorpus/harvester/ratelimit"
)

const (
	rawgBaseURL  = "https://api.rawg.io"
	rawgPageSize = 40
)

// RAWG drives the RAWG.io games API: a paged listing of ids followed
// by one detail request per game. Listing requests wait on the shared
// session limiter because they spend the same API quota as details.
type RAWG struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	apiKey  string
}

func NewRAWG(cfg *config.Config, limiter *ratelimit.Limiter) *RAWG {
	if limiter == nil {
		limiter = ratelimit.New(0)
	}
	return &RAWG{
		client:  newClient(cfg, rawgBaseURL),
		limiter: limiter,
		apiKey:  cfg.APIKey,
	}
}

func (r *RAWG) Describe() harvest.Descriptor {
	return harvest.Descriptor{
		Name:       "rawg",
		LedgerFile: "scraped_game_ids.txt",
		Policy:     harvest.StopOnEmptyPage,
		Meta: map[string]any{
			"page_size":    rawgPageSize,
			"api_key_hash": keyFingerprint(r.apiKey),
		},
	}
}

func (r *RAWG) ListPage(ctx context.Context, page int) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":       r.apiKey,
			"page":      strconv.Itoa(page),
			"page_size": strconv.Itoa(rawgPageSize),
		}).
		Get("/api/games")
	if err != nil {
		return nil, fmt.Errorf("rawg page %d: %w", page, err)
	}
	if resp.IsError() {
		return nil, &harvest.RequestError{Status: resp.StatusCode(), Err: fmt.Errorf("rawg page %d", page)}
	}

	var listing struct {
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("rawg page %d: %w", page, err)
	}

	ids := make([]string, 0, len(listing.Results))
	for _, g := range listing.Results {
		ids = append(ids, strconv.FormatInt(g.ID, 10))
	}
	return ids, nil
}

// FetchDetail pulls the full game record. Records missing an id or a
// name are stub entries RAWG has delisted, not worth keeping.
func (r *RAWG) FetchDetail(ctx context.Context, id string) (models.Record, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("key", r.apiKey).
		SetPathParam("id", id).
		Get("/api/games/{id}")
	if err != nil {
		return nil, fmt.Errorf("rawg game %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, &harvest.RequestError{Status: resp.StatusCode(), Err: fmt.Errorf("rawg game %s", id)}
	}

	rec := models.Record(resp.Body())
	if !json.Valid(rec) {
		return nil, fmt.Errorf("rawg game %s: invalid JSON", id)
	}
	if _, ok := rec.Int("id"); !ok {
		return nil, fmt.Errorf("game %s missing id: %w", id, harvest.ErrFiltered)
	}
	if name, ok := rec.Str("name"); !ok || name == "" {
		return nil, fmt.Errorf("game %s missing name: %w", id, harvest.ErrFiltered)
	}
	return rec, nil
}
