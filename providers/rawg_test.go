package providers

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/gamecorpus/harvester/config"
	"github.com/gamecorpus/harvester/harvest"
	"github.com/gamecorpus/harvester/ratelimit"
)

func newTestRAWG(t *testing.T) (*RAWG, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.Default(config.ProviderRAWG)
	cfg.APIKey = "test-key"
	r := NewRAWG(cfg, ratelimit.New(0))
	mt := httpmock.NewMockTransport()
	r.client.SetTransport(mt)
	return r, mt
}

func TestRAWGListPage(t *testing.T) {
	r, mt := newTestRAWG(t)

	var gotQuery url.Values
	mt.RegisterResponder("GET", rawgBaseURL+"/api/games",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query()
			return httpmock.NewStringResponse(200,
				`{"count": 2, "results": [{"id": 3498, "name": "Grand Theft Auto V"}, {"id": 3328, "name": "The Witcher 3"}]}`), nil
		})

	ids, err := r.ListPage(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"3498", "3328"}, ids, "listing order is preserved")
	require.Equal(t, "test-key", gotQuery.Get("key"))
	require.Equal(t, "2", gotQuery.Get("page"))
	require.Equal(t, "40", gotQuery.Get("page_size"))
}

func TestRAWGListPagePastEnd(t *testing.T) {
	r, mt := newTestRAWG(t)
	mt.RegisterResponder("GET", rawgBaseURL+"/api/games",
		httpmock.NewStringResponder(404, `{"detail": "Invalid page."}`))

	_, err := r.ListPage(context.Background(), 9000)
	var reqErr *harvest.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, 404, reqErr.Status)
}

func TestRAWGFetchDetail(t *testing.T) {
	r, mt := newTestRAWG(t)

	var gotQuery url.Values
	mt.RegisterResponder("GET", rawgBaseURL+"/api/games/3498",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query()
			return httpmock.NewStringResponse(200,
				`{"id": 3498, "name": "Grand Theft Auto V", "released": "2013-09-17"}`), nil
		})

	rec, err := r.FetchDetail(context.Background(), "3498")
	require.NoError(t, err)
	require.Equal(t, "test-key", gotQuery.Get("key"))

	name, ok := rec.Str("name")
	require.True(t, ok)
	require.Equal(t, "Grand Theft Auto V", name)
}

func TestRAWGFetchDetailDelistedStub(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"id": 3498}`},
		{"empty name", `{"id": 3498, "name": ""}`},
		{"missing id", `{"name": "ghost entry"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mt := newTestRAWG(t)
			mt.RegisterResponder("GET", rawgBaseURL+"/api/games/3498",
				httpmock.NewStringResponder(200, tt.body))

			_, err := r.FetchDetail(context.Background(), "3498")
			require.ErrorIs(t, err, harvest.ErrFiltered)
		})
	}
}
