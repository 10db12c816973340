package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

const testAPIKey = "abcdef0123456789"

// fakeFetcher serves canned observations per series id and records calls.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]model.Observation
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchSeries(_ context.Context, seriesID, _ string, _ string) ([]model.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, seriesID)
	if err := f.fail[seriesID]; err != nil {
		return nil, err
	}
	obs, ok := f.data[seriesID]
	if !ok {
		return nil, fmt.Errorf("unexpected series %s", seriesID)
	}
	return obs, nil
}

// fredServer fakes /fred/series/observations. Bodies are keyed by series_id;
// unknown ids get FRED's 400 error payload.
type fredServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
}

func newFREDServer(t *testing.T, bodies map[string]string) *fredServer {
	t.Helper()
	fs := &fredServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.requests = append(fs.requests, r.Clone(r.Context()))
		fs.mu.Unlock()

		body, ok := bodies[r.URL.Query().Get("series_id")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				ErrorCode:    400,
				ErrorMessage: "Bad Request.  The series does not exist.",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fredServer) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.requests)
}

func observationsBody(pairs ...string) string {
	type obs struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	}
	resp := struct {
		Observations []obs `json:"observations"`
	}{}
	for i := 0; i+1 < len(pairs); i += 2 {
		resp.Observations = append(resp.Observations, obs{Date: pairs[i], Value: pairs[i+1]})
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
