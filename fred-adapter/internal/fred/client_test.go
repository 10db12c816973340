package fred

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Checker-Finance/plumbing-feed/internal/httpclient"
)

func newTestClient(baseURL string) *Client {
	return NewClient(zap.NewNop(), nil, ClientOptions{BaseURL: baseURL, Timeout: 2 * time.Second})
}

func TestFetchSeries_SOFR(t *testing.T) {
	srv := newFREDServer(t, map[string]string{
		"SOFR": observationsBody("2024-01-02", "5.31", "2024-01-03", "."),
	})

	obs, err := newTestClient(srv.URL+"/fred/series/observations").
		FetchSeries(context.Background(), "SOFR", testAPIKey, "2018-01-01")
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "2024-01-02", obs[0].Date)
	assert.True(t, obs[0].Value.Valid)
	assert.Equal(t, 5.31, obs[0].Value.Float64)
	assert.Equal(t, "2024-01-03", obs[1].Date)
	assert.False(t, obs[1].Value.Valid)

	require.Equal(t, 1, srv.count())
	req := srv.requests[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/fred/series/observations", req.URL.Path)
	q := req.URL.Query()
	assert.Equal(t, "SOFR", q.Get("series_id"))
	assert.Equal(t, testAPIKey, q.Get("api_key"))
	assert.Equal(t, "json", q.Get("file_type"))
	assert.Equal(t, "2018-01-01", q.Get("observation_start"))
}

func TestFetchSeries_KeepsUpstreamOrder(t *testing.T) {
	srv := newFREDServer(t, map[string]string{
		"EFFR": observationsBody("2024-01-03", "5.33", "2024-01-02", "5.33", "2024-01-02", ""),
	})

	obs, err := newTestClient(srv.URL).FetchSeries(context.Background(), "EFFR", testAPIKey, "")
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, []string{"2024-01-03", "2024-01-02", "2024-01-02"},
		[]string{obs[0].Date, obs[1].Date, obs[2].Date})
	assert.False(t, obs[2].Value.Valid)
	assert.Empty(t, srv.requests[0].URL.Query().Get("observation_start"))
}

func TestFetchSeries_MissingObservationsArray(t *testing.T) {
	srv := newFREDServer(t, map[string]string{"WALCL": `{"count":0}`})

	obs, err := newTestClient(srv.URL).FetchSeries(context.Background(), "WALCL", testAPIKey, "2005-01-01")
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestFetchSeries_NonSuccessStatus(t *testing.T) {
	srv := newFREDServer(t, nil)

	_, err := newTestClient(srv.URL).FetchSeries(context.Background(), "NOPE", testAPIKey, "2015-01-01")
	require.Error(t, err)

	var reqErr *httpclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Contains(t, err.Error(), "series does not exist")
	assert.Contains(t, err.Error(), "NOPE")
	assert.NotContains(t, err.Error(), testAPIKey)
	assert.Equal(t, 1, srv.count(), "no retries by default")
}

func TestFetchSeries_EmptyOrNullBody(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "null": "null"} {
		t.Run(name, func(t *testing.T) {
			srv := newFREDServer(t, map[string]string{"SOFR": body})

			obs, err := newTestClient(srv.URL).FetchSeries(context.Background(), "SOFR", testAPIKey, "2018-01-01")
			assert.Nil(t, obs)

			var reqErr *httpclient.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, http.StatusOK, reqErr.StatusCode)
			assert.NotContains(t, err.Error(), testAPIKey)
		})
	}
}

func TestFetchSeries_BodyNotJSON(t *testing.T) {
	srv := newFREDServer(t, map[string]string{"SOFR": `<html>down for maintenance</html>`})

	_, err := newTestClient(srv.URL).FetchSeries(context.Background(), "SOFR", testAPIKey, "2018-01-01")
	var reqErr *httpclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, err.Error(), "decode failed")
}

func TestFetchSeries_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(observationsBody("2024-01-02", "5.31")))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), nil, ClientOptions{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.FetchSeries(context.Background(), "SOFR", testAPIKey, "")

	var reqErr *httpclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.Timeout())
	assert.NotContains(t, err.Error(), testAPIKey)
}

func TestFetchSeries_APIKeyNeverLogged(t *testing.T) {
	srv := newFREDServer(t, map[string]string{
		"SOFR": observationsBody("2024-01-02", "5.31"),
	})
	core, logs := observer.New(zap.DebugLevel)
	c := NewClient(zap.New(core), nil, ClientOptions{BaseURL: srv.URL})

	_, err := c.FetchSeries(context.Background(), "SOFR", testAPIKey, "2018-01-01")
	require.NoError(t, err)
	_, err = c.FetchSeries(context.Background(), "MISSING", testAPIKey, "2018-01-01")
	require.Error(t, err)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, testAPIKey)
		for _, f := range entry.Context {
			assert.False(t, strings.Contains(f.String, testAPIKey), "field %s leaks the api key", f.Key)
			if e, ok := f.Interface.(error); ok {
				assert.NotContains(t, e.Error(), testAPIKey)
			}
		}
	}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	c := newTestClient("://bad")
	_, err := c.FetchSeries(context.Background(), "SOFR", testAPIKey, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base url")
}
