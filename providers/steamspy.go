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
)

const (
	steamspyBaseURL = "https://steamspy.com"

	// SteamSpy serves this appid for titles it hides from the API.
	steamspyHiddenAppID = 999999
)

// SteamSpy drives the SteamSpy bulk catalog. The "all" listing
// occasionally serves empty pages in the middle of the catalog, so the
// engine skips them instead of stopping.
type SteamSpy struct {
	client *resty.Client
}

func NewSteamSpy(cfg *config.Config) *SteamSpy {
	return &SteamSpy{client: newClient(cfg, steamspyBaseURL)}
}

func (s *SteamSpy) Describe() harvest.Descriptor {
	return harvest.Descriptor{
		Name:       "steamspy",
		LedgerFile: "scraped_appids.txt",
		Policy:     harvest.SkipEmptyPage,
	}
}

// ListPage fetches one catalog page. SteamSpy pages are zero-indexed
// on the wire and arrive as a JSON object keyed by appid.
func (s *SteamSpy) ListPage(ctx context.Context, page int) ([]string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"request": "all",
			"page":    strconv.Itoa(page - 1),
		}).
		Get("/api.php")
	if err != nil {
		return nil, fmt.Errorf("steamspy page %d: %w", page, err)
	}
	if resp.IsError() {
		return nil, &harvest.RequestError{Status: resp.StatusCode(), Err: fmt.Errorf("steamspy page %d", page)}
	}

	var catalog map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &catalog); err != nil {
		return nil, fmt.Errorf("steamspy page %d: %w", page, err)
	}

	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sortNumeric(ids)
	return ids, nil
}

func (s *SteamSpy) FetchDetail(ctx context.Context, id string) (models.Record, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"request": "appdetails",
			"appid":   id,
		}).
		Get("/api.php")
	if err != nil {
		return nil, fmt.Errorf("steamspy appdetails %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, &harvest.RequestError{Status: resp.StatusCode(), Err: fmt.Errorf("steamspy appdetails %s", id)}
	}

	rec := models.Record(resp.Body())
	if !json.Valid(rec) {
		return nil, fmt.Errorf("steamspy appdetails %s: invalid JSON", id)
	}
	if appid, ok := rec.Int("appid"); ok && appid == steamspyHiddenAppID {
		return nil, fmt.Errorf("appid %s: %w", id, harvest.ErrFiltered)
	}
	return rec, nil
}
