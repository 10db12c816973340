package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/metrics"
	"github.com/Checker-Finance/plumbing-feed/internal/httpclient"
	"github.com/Checker-Finance/plumbing-feed/internal/rate"
	"github.com/Checker-Finance/plumbing-feed/pkg/model"
	"github.com/Checker-Finance/plumbing-feed/pkg/utils"
)

const (
	venueTag     = "fred"
	rateLimitKey = "fred"
	fileTypeJSON = "json"
)

// Fetcher returns the observations of one series on or after start (YYYY-MM-DD).
type Fetcher interface {
	FetchSeries(ctx context.Context, seriesID, apiKey, start string) ([]model.Observation, error)
}

// ClientOptions tune the FRED HTTP client.
type ClientOptions struct {
	BaseURL  string
	Timeout  time.Duration // per request
	RetryMax int
}

// Client wraps low-level HTTP communication with the FRED API.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
}

// NewClient constructs a FRED client. rateMgr may be nil to disable throttling.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, opts ClientOptions) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, opts.RetryMax, venueTag, func(status int, body []byte) error {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.ErrorMessage != "" {
			return fmt.Errorf("fred error %d: %s", errResp.ErrorCode, errResp.ErrorMessage)
		}
		return fmt.Errorf("fred returned %d", status)
	}).MaskParams("api_key")

	return &Client{
		logger:  logger,
		exec:    exec,
		baseURL: opts.BaseURL,
	}
}

// errNullBody rejects a 2xx response whose body is the JSON literal null.
var errNullBody = errors.New("response body is null")

// FetchSeries performs one GET for seriesID. A non-2xx status, transport
// failure, timeout, or an empty, null or undecodable body yields a
// *httpclient.RequestError. An object without "observations" is an empty series.
func (c *Client) FetchSeries(ctx context.Context, seriesID, apiKey, start string) ([]model.Observation, error) {
	endpoint, err := c.buildRequestURL(seriesID, apiKey, start)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fred %s: build request: %w", seriesID, err)
	}
	req.Header.Set("Accept", "application/json")

	began := time.Now()
	var resp *ObservationsResponse
	err = c.exec.DoJSON(ctx, req, rateLimitKey, &resp)
	metrics.ObserveDuration(metrics.FREDRequestDuration, began, seriesID)
	if err == nil && resp == nil {
		err = &httpclient.RequestError{
			Venue:      venueTag,
			URL:        utils.MaskQuery(endpoint, "api_key"),
			StatusCode: http.StatusOK,
			Body:       "null",
			Err:        errNullBody,
		}
	}
	if err != nil {
		metrics.IncFREDRequest(seriesID, requestStatus(err))
		return nil, fmt.Errorf("fred %s: %w", seriesID, err)
	}
	metrics.IncFREDRequest(seriesID, "200")

	obs := Normalize(resp.Observations)

	valid := 0
	for _, o := range obs {
		if o.Value.Valid {
			valid++
		}
	}
	metrics.AddObservations(seriesID, valid, len(obs)-valid)

	c.logger.Info("fred.fetch_success",
		zap.String("series", seriesID),
		zap.String("start", start),
		zap.Int("observations", len(obs)),
		zap.Int("missing", len(obs)-valid),
		zap.Duration("elapsed", time.Since(began)))

	return obs, nil
}

func (c *Client) buildRequestURL(seriesID, apiKey, start string) (*url.URL, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fred: invalid base url: %w", err)
	}

	query := endpoint.Query()
	query.Set("series_id", seriesID)
	query.Set("api_key", apiKey)
	query.Set("file_type", fileTypeJSON)
	if start != "" {
		query.Set("observation_start", start)
	}
	endpoint.RawQuery = query.Encode()

	return endpoint, nil
}

func requestStatus(err error) string {
	var reqErr *httpclient.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.StatusCode != 0:
			return strconv.Itoa(reqErr.StatusCode)
		case reqErr.Timeout():
			return "timeout"
		}
	}
	return "error"
}
