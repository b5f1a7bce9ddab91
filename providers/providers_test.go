package providers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     any
	}{
		{config.ProviderSteamSpy, &SteamSpy{}},
		{config.ProviderRAWG, &RAWG{}},
		{config.ProviderIGDB, &IGDB{}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Default(tt.provider)
			cfg.APIKey = "k"
			cfg.ClientID = "c"
			cfg.ClientSecret = "s"

			src, err := New(cfg, ratelimit.New(cfg.ItemDelay), testLogger())
			require.NoError(t, err)
			require.IsType(t, tt.want, src)
			require.Equal(t, tt.provider, src.Describe().Name)
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := config.Default("metacritic")

	_, err := New(cfg, ratelimit.New(0), testLogger())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown provider")
}

func TestNewClientBaseURLOverride(t *testing.T) {
	cfg := config.Default(config.ProviderSteamSpy)
	cfg.BaseURL = "http://127.0.0.1:8080"

	c := newClient(cfg, steamspyBaseURL)
	require.Equal(t, cfg.BaseURL, c.BaseURL)
}

func TestSortNumeric(t *testing.T) {
	ids := []string{"100", "20", "3"}
	sortNumeric(ids)
	require.Equal(t, []string{"3", "20", "100"}, ids)

	mixed := []string{"beta", "10", "2"}
	sortNumeric(mixed)
	require.Equal(t, []string{"2", "10", "beta"}, mixed)
}

func TestKeyFingerprint(t *testing.T) {
	require.Len(t, keyFingerprint("abc"), 8)
	require.Equal(t, keyFingerprint("abc"), keyFingerprint("abc"))
	require.NotEqual(t, keyFingerprint("abc"), keyFingerprint("abd"))
}
