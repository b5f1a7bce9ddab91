package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/harvest"
	"github.com/gamecorpus/harvester/models"
	"github.com/gamecorpus/harvester/ratelimit"
)

const (
	igdbBaseURL = "https://api.igdb.com"
	igdbAuthURL = "https://id.twitch.tv"

	// IGDB pages carry full records, 500 per query.
	igdbPageSize = 500

	// IGDB allows four requests per second.
	igdbRequestInterval = 250 * time.Millisecond

	// Twitch app tokens default to sixty days; renew an hour early so
	// a long run never races the expiry.
	igdbDefaultTokenTTL = 5184000 * time.Second
	igdbTokenMargin     = time.Hour
)

const igdbGamesQuery = "fields id, name, rating, rating_count, aggregated_rating, " +
	"aggregated_rating_count, first_release_date, genres.name, platforms.name, " +
	"involved_companies.company.name; limit %d; offset %d; " +
	"where rating_count > 0; sort rating_count desc;"

// IGDB drives the IGDB v4 API through Twitch OAuth. Each Apicalypse
// query returns full records, so listing a page fills a cache that
// FetchDetail serves without further requests. The adapter paces its
// own requests on an internal limiter sized to the IGDB quota.
type IGDB struct {
	client  *resty.Client
	auth    *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	clientID     string
	clientSecret string

	token       string
	tokenExpiry time.Time

	cache     map[string]models.Record
	exhausted bool
}

func NewIGDB(cfg *config.Config, logger *slog.Logger) *IGDB {
	if logger == nil {
		logger = slog.Default()
	}
	authURL := igdbAuthURL
	if cfg.AuthURL != "" {
		authURL = cfg.AuthURL
	}
	interval := igdbRequestInterval
	if cfg.ItemDelay > interval {
		interval = cfg.ItemDelay
	}
	return &IGDB{
		client: newClient(cfg, igdbBaseURL),
		auth: resty.New().
			SetBaseURL(authURL).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", cfg.UserAgent),
		limiter:      ratelimit.New(interval),
		logger:       logger,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		cache:        make(map[string]models.Record),
	}
}

func (g *IGDB) Describe() harvest.Descriptor {
	return harvest.Descriptor{
		Name:       "igdb",
		LedgerFile: "scraped_game_ids.txt",
		Policy:     harvest.StopOnEmptyPage,
		Meta: map[string]any{
			"page_size": igdbPageSize,
			"client_id": g.clientID,
		},
	}
}

// ListPage runs one Apicalypse query and caches the records it
// returns. A short page means the sort has run out of games, so later
// pages report an empty catalog without asking upstream.
func (g *IGDB) ListPage(ctx context.Context, page int) ([]string, error) {
	if g.exhausted {
		return nil, nil
	}

	body := fmt.Sprintf(igdbGamesQuery, igdbPageSize, (page-1)*igdbPageSize)
	records, err := g.query(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(records) < igdbPageSize {
		g.exhausted = true
	}

	g.cache = make(map[string]models.Record, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		id, ok := rec.Int("id")
		if !ok {
			continue
		}
		key := strconv.FormatInt(id, 10)
		g.cache[key] = rec
		ids = append(ids, key)
	}
	return ids, nil
}

// FetchDetail serves a record cached by the last ListPage call.
func (g *IGDB) FetchDetail(_ context.Context, id string) (models.Record, error) {
	rec, ok := g.cache[id]
	if !ok {
		return nil, fmt.Errorf("game %s not on the current page", id)
	}
	if name, ok := rec.Str("name"); !ok || name == "" {
		return nil, fmt.Errorf("game %s missing name: %w", id, harvest.ErrFiltered)
	}
	return rec, nil
}

// query posts an Apicalypse body. A 401 means Twitch revoked the token
// early; the adapter re-authenticates once and retries once.
func (g *IGDB) query(ctx context.Context, body string) ([]models.Record, error) {
	resp, err := g.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		g.token = ""
		g.logger.Warn("igdb token rejected, re-authenticating")
		resp, err = g.post(ctx, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, &harvest.AuthError{Provider: "igdb", Err: errors.New("token rejected after refresh")}
		}
	}
	if resp.IsError() {
		return nil, &harvest.RequestError{Status: resp.StatusCode(), Err: errors.New("igdb games query")}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("igdb games: %w", err)
	}
	records := make([]models.Record, len(raw))
	for i, r := range raw {
		records[i] = models.Record(r)
	}
	return records, nil
}

func (g *IGDB) post(ctx context.Context, body string) (*resty.Response, error) {
	if err := g.ensureToken(ctx); err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Client-ID", g.clientID).
		SetHeader("Content-Type", "text/plain").
		SetAuthToken(g.token).
		SetBody(body).
		Post("/v4/games")
	if err != nil {
		return nil, fmt.Errorf("igdb games: %w", err)
	}
	return resp, nil
}

func (g *IGDB) ensureToken(ctx context.Context) error {
	if g.token != "" && time.Now().Before(g.tokenExpiry) {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := g.auth.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     g.clientID,
			"client_secret": g.clientSecret,
			"grant_type":    "client_credentials",
		}).
		Post("/oauth2/token")
	if err != nil {
		return &harvest.AuthError{Provider: "igdb", Err: err}
	}
	if resp.IsError() {
		return &harvest.AuthError{Provider: "igdb", Err: fmt.Errorf("token request: status %d", resp.StatusCode())}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return &harvest.AuthError{Provider: "igdb", Err: err}
	}
	if tok.AccessToken == "" {
		return &harvest.AuthError{Provider: "igdb", Err: errors.New("empty access token")}
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = igdbDefaultTokenTTL
	}
	g.token = tok.AccessToken
	g.tokenExpiry = time.Now().Add(ttl - igdbTokenMargin)
	g.logger.Debug("igdb token refreshed", slog.Duration("ttl", ttl))
	return nil
}
