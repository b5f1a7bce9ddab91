// Package providers implements the catalog sources the harvester can
// drive. Each adapter speaks one upstream API and presents it to the
// engine as pages of ids plus per-id detail records.
package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/harvest"
	"github.com/gamecorpus/harvester/ratelimit"
)

// New builds the source for cfg.Provider. The limiter is the session
// limiter; adapters that issue their own listing requests wait on it
// so all traffic to a provider shares one budget.
func New(cfg *config.Config, limiter *ratelimit.Limiter, logger *slog.Logger) (harvest.Source, error) {
	switch cfg.Provider {
	case config.ProviderSteamSpy:
		return NewSteamSpy(cfg), nil
	case config.ProviderRAWG:
		return NewRAWG(cfg, limiter), nil
	case config.ProviderIGDB:
		return NewIGDB(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newClient builds a resty client with the shared transport settings.
// cfg.BaseURL, when set, overrides the provider endpoint.
func newClient(cfg *config.Config, baseURL string) *resty.Client {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")
}

// sortNumeric orders ids numerically so pages replay in a stable
// order. Non-numeric ids, which the upstreams do not serve today, fall
// back to lexical order.
func sortNumeric(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(ids[i])
		b, berr := strconv.Atoi(ids[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
}

// keyFingerprint identifies a credential in run metadata without
// recording the credential itself.
func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}
