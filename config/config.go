package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Providers the harvester knows how to drive.
const (
	ProviderSteamSpy = "steamspy"
	ProviderRAWG     = "rawg"
	ProviderIGDB     = "igdb"
)

// Config holds harvester configuration.
type Config struct {
	Provider string

	Pages     int
	PageDelay time.Duration
	ItemDelay time.Duration

	DataDir string

	// BaseURL and AuthURL override the provider endpoints, mainly for
	// tests and mirrors. Empty means the provider default.
	BaseURL string
	AuthURL string

	APIKey       string
	ClientID     string
	ClientSecret string

	Timeout     time.Duration
	UserAgent   string
	MetricsAddr string
	Verbose     bool
}

// Default returns the baked defaults for a provider. Unknown names get
// neutral values and fail Validate later.
func Default(provider string) *Config {
	cfg := &Config{
		Provider:  provider,
		DataDir:   "data",
		Timeout:   30 * time.Second,
		UserAgent: "gamecorpus-harvester/1.0",
	}

	switch provider {
	case ProviderSteamSpy:
		cfg.Pages = 10
		cfg.PageDelay = 15 * time.Second
		cfg.ItemDelay = 100 * time.Millisecond
	case ProviderRAWG:
		cfg.Pages = 100
		cfg.ItemDelay = time.Second
	case ProviderIGDB:
		// Pages carry full records, so items need no spacing; the
		// adapter paces its own requests.
		cfg.Pages = 100
	default:
		cfg.Pages = 10
	}
	return cfg
}

// Validate ensures all configuration values are coherent for the
// chosen provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSteamSpy, ProviderRAWG, ProviderIGDB:
	case "":
		return fmt.Errorf("provider cannot be empty")
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.Pages <= 0 {
		return fmt.Errorf("pages must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.ItemDelay < 0 {
		return fmt.Errorf("item delay cannot be negative")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	for _, override := range []string{c.BaseURL, c.AuthURL} {
		if override == "" {
			continue
		}
		parsed, err := url.Parse(override)
		if err != nil {
			return fmt.Errorf("invalid URL override: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("URL override must include a host")
		}
	}

	if c.Provider == ProviderRAWG && c.APIKey == "" {
		return fmt.Errorf("rawg requires an API key")
	}
	if c.Provider == ProviderIGDB && (c.ClientID == "" || c.ClientSecret == "") {
		return fmt.Errorf("igdb requires client credentials")
	}
	return nil
}

// ApplyEnv overlays HARVESTER_* variables and the provider credential
// variables onto the config.
func (c *Config) ApplyEnv() error {
	if v, ok, err := EnvInt("HARVESTER_PAGES"); err != nil {
		return err
	} else if ok {
		c.Pages = v
	}
	if v, ok, err := EnvDuration("HARVESTER_PAGE_DELAY"); err != nil {
		return err
	} else if ok {
		c.PageDelay = v
	}
	if v, ok, err := EnvDuration("HARVESTER_ITEM_DELAY"); err != nil {
		return err
	} else if ok {
		c.ItemDelay = v
	}
	if v, ok := EnvString("HARVESTER_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := EnvString("HARVESTER_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := EnvString("RAWG_API_KEY"); ok {
		c.APIKey = v
	}
	if v, ok := EnvString("IGDB_CLIENT_ID"); ok {
		c.ClientID = v
	}
	if v, ok := EnvString("IGDB_CLIENT_SECRET"); ok {
		c.ClientSecret = v
	}
	if v, ok, err := EnvBool("HARVESTER_VERBOSE"); err != nil {
		return err
	} else if ok {
		c.Verbose = v
	}
	return nil
}

// EnvString returns the trimmed value of key when set and non-empty.
func EnvString(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// EnvInt parses an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvBool parses a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// EnvDuration parses a duration environment variable. Bare numbers are
// taken as seconds.
func EnvDuration(key string) (time.Duration, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if sec, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(sec * float64(time.Second)), true, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// fileConfig mirrors the json5 config file layout. Delays and the
// timeout are plain seconds.
type fileConfig struct {
	Provider     string  `json:"provider"`
	Pages        int     `json:"pages"`
	PageDelay    float64 `json:"page_delay"`
	ItemDelay    float64 `json:"item_delay"`
	DataDir      string  `json:"data_dir"`
	BaseURL      string  `json:"base_url"`
	AuthURL      string  `json:"auth_url"`
	APIKey       string  `json:"api_key"`
	ClientID     string  `json:"client_id"`
	ClientSecret string  `json:"client_secret"`
	Timeout      float64 `json:"timeout"`
	UserAgent    string  `json:"user_agent"`
	MetricsAddr  string  `json:"metrics_addr"`
	Verbose      bool    `json:"verbose"`
}

// LoadFile overlays a json5 config file onto cfg. A sibling
// `<name>.local.<ext>` file, when present, is merged over the base
// file first so deployments can keep secrets out of the shared file.
func LoadFile(path string, cfg *Config) error {
	base, err := readFileConfig(path)
	if err != nil {
		return err
	}

	ext := filepath.Ext(path)
	localPath := strings.TrimSuffix(path, ext) + ".local" + ext
	local, err := readFileConfig(localPath)
	if err == nil {
		if err := mergo.Merge(&base, local, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge local config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	base.apply(cfg)
	return nil
}

func readFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := json5.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %q: %w", path, err)
	}
	return fc, nil
}

func (f fileConfig) apply(cfg *Config) {
	if f.Provider != "" {
		cfg.Provider = f.Provider
	}
	if f.Pages != 0 {
		cfg.Pages = f.Pages
	}
	if f.PageDelay != 0 {
		cfg.PageDelay = seconds(f.PageDelay)
	}
	if f.ItemDelay != 0 {
		cfg.ItemDelay = seconds(f.ItemDelay)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.AuthURL != "" {
		cfg.AuthURL = f.AuthURL
	}
	if f.APIKey != "" {
		cfg.APIKey = f.APIKey
	}
	if f.ClientID != "" {
		cfg.ClientID = f.ClientID
	}
	if f.ClientSecret != "" {
		cfg.ClientSecret = f.ClientSecret
	}
	if f.Timeout != 0 {
		cfg.Timeout = seconds(f.Timeout)
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if f.Verbose {
		cfg.Verbose = true
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
