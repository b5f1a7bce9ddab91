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
)

func newTestSteamSpy(t *testing.T) (*SteamSpy, *httpmock.MockTransport) {
	t.Helper()
	s := NewSteamSpy(config.Default(config.ProviderSteamSpy))
	mt := httpmock.NewMockTransport()
	s.client.SetTransport(mt)
	return s, mt
}

func TestSteamSpyListPage(t *testing.T) {
	s, mt := newTestSteamSpy(t)

	var gotQuery url.Values
	mt.RegisterResponder("GET", steamspyBaseURL+"/api.php",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query()
			return httpmock.NewStringResponse(200,
				`{"570": {"appid": 570}, "10": {"appid": 10}, "730": {"appid": 730}}`), nil
		})

	ids, err := s.ListPage(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"10", "570", "730"}, ids)
	require.Equal(t, "all", gotQuery.Get("request"))
	require.Equal(t, "0", gotQuery.Get("page"), "first page is zero on the wire")
}

func TestSteamSpyListPageServerError(t *testing.T) {
	s, mt := newTestSteamSpy(t)
	mt.RegisterResponder("GET", steamspyBaseURL+"/api.php",
		httpmock.NewStringResponder(500, "temporarily unavailable"))

	_, err := s.ListPage(context.Background(), 3)
	require.Error(t, err)
	var reqErr *harvest.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, 500, reqErr.Status)
}

func TestSteamSpyFetchDetail(t *testing.T) {
	s, mt := newTestSteamSpy(t)

	var gotQuery url.Values
	mt.RegisterResponder("GET", steamspyBaseURL+"/api.php",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query()
			return httpmock.NewStringResponse(200,
				`{"appid": 570, "name": "Dota 2", "developer": "Valve"}`), nil
		})

	rec, err := s.FetchDetail(context.Background(), "570")
	require.NoError(t, err)
	require.Equal(t, "appdetails", gotQuery.Get("request"))
	require.Equal(t, "570", gotQuery.Get("appid"))

	name, ok := rec.Str("name")
	require.True(t, ok)
	require.Equal(t, "Dota 2", name)
}

func TestSteamSpyFetchDetailHiddenApp(t *testing.T) {
	s, mt := newTestSteamSpy(t)
	mt.RegisterResponder("GET", steamspyBaseURL+"/api.php",
		httpmock.NewStringResponder(200, `{"appid": 999999, "name": ""}`))

	_, err := s.FetchDetail(context.Background(), "48700")
	require.ErrorIs(t, err, harvest.ErrFiltered)
}

func TestSteamSpyFetchDetailInvalidBody(t *testing.T) {
	s, mt := newTestSteamSpy(t)
	mt.RegisterResponder("GET", steamspyBaseURL+"/api.php",
		httpmock.NewStringResponder(200, "<html>try later</html>"))

	_, err := s.FetchDetail(context.Background(), "570")
	require.Error(t, err)
	require.NotErrorIs(t, err, harvest.ErrFiltered)
}
