package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/internal/rate"
	"github.com/Checker-Finance/plumbing-feed/pkg/utils"
)

// ErrEmptyBody is the cause of a RequestError for a 2xx response with no body
// when a decoded result was expected.
var ErrEmptyBody = errors.New("empty body")

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 64 << 20

// RequestError reports an upstream call that did not produce a usable response:
// a transport failure or timeout, a non-2xx status, or an undecodable body.
type RequestError struct {
	Venue      string
	URL        string // masked
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body, if any
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s request %s: status %d: %v", e.Venue, e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s request %s returned %d: %s", e.Venue, e.URL, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s request %s failed: %v", e.Venue, e.URL, e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because a deadline passed.
func (e *RequestError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Executor handles rate-limited HTTP execution with JSON decoding.
// Transport failures and 5xx responses are retried up to retryMax times;
// with retryMax 0 every request is attempted exactly once.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	venueTag     string
	errorHandler func(status int, body []byte) error
	sensitive    []string
}

// New creates an Executor. errorHandler is called on non-2xx responses to produce a
// venue-specific cause for the RequestError. If nil, the status alone is reported.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	venueTag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if retryMax < 0 {
		retryMax = 0
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		venueTag:     venueTag,
		errorHandler: errorHandler,
	}
}

// MaskParams names query parameters that must be masked whenever a URL is logged
// or put into an error.
func (e *Executor) MaskParams(params ...string) *Executor {
	e.sensitive = append(e.sensitive, params...)
	return e
}

// DoJSON executes req with rate limiting, then JSON-decodes a 2xx response into out.
// When out is non-nil an empty body is an error. rateLimitKey scopes the rate
// limiter. Every failure is a *RequestError.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	safeURL := utils.MaskQuery(req.URL, e.sensitive...)

	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return &RequestError{Venue: e.venueTag, URL: safeURL, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	var lastErr *RequestError
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, Backoff(attempt-1)); err != nil {
				return &RequestError{Venue: e.venueTag, URL: safeURL, Err: err}
			}
		}

		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return &RequestError{Venue: e.venueTag, URL: safeURL, Err: err}
		}

		start := time.Now()
		resp, err := e.http.Do(attemptReq)
		if err != nil {
			lastErr = &RequestError{Venue: e.venueTag, URL: safeURL, Err: scrub(err, req.URL.String(), safeURL)}
			e.logger.Warn(e.venueTag+".http_failed",
				zap.String("url", safeURL),
				zap.Error(lastErr.Err),
				zap.Int("attempt", attempt))
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		elapsed := time.Since(start)

		if readErr != nil {
			lastErr = &RequestError{Venue: e.venueTag, URL: safeURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", readErr)}
			e.logger.Warn(e.venueTag+".read_failed",
				zap.String("url", safeURL),
				zap.Error(readErr),
				zap.Int("attempt", attempt))
			continue
		}

		if resp.StatusCode >= 500 {
			e.logger.Warn(e.venueTag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", safeURL),
				zap.Duration("latency", elapsed),
				zap.Int("attempt", attempt))
			lastErr = e.statusError(safeURL, resp.StatusCode, body)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			e.logger.Warn(e.venueTag+".client_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", safeURL),
				zap.Duration("latency", elapsed))
			return e.statusError(safeURL, resp.StatusCode, body)
		}

		if out != nil {
			if len(bytes.TrimSpace(body)) == 0 {
				e.logger.Warn(e.venueTag+".empty_body",
					zap.String("url", safeURL),
					zap.Int("status", resp.StatusCode))
				return &RequestError{Venue: e.venueTag, URL: safeURL, StatusCode: resp.StatusCode, Err: ErrEmptyBody}
			}
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.venueTag+".decode_failed",
					zap.Error(err),
					zap.String("url", safeURL),
					zap.String("body", truncate(body)))
				return &RequestError{Venue: e.venueTag, URL: safeURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode failed: %w", err)}
			}
		}

		e.logger.Debug(e.venueTag+".http_success",
			zap.String("url", safeURL),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	if e.retryMax > 0 {
		lastErr.Err = fmt.Errorf("failed after %d attempts: %w", e.retryMax+1, lastErr.cause())
	}
	return lastErr
}

func (e *Executor) statusError(safeURL string, status int, body []byte) *RequestError {
	re := &RequestError{Venue: e.venueTag, URL: safeURL, StatusCode: status, Body: truncate(body)}
	if e.errorHandler != nil {
		re.Err = e.errorHandler(status, body)
	}
	return re
}

func (e *RequestError) cause() error {
	if e.Err != nil {
		return e.Err
	}
	return fmt.Errorf("status %d", e.StatusCode)
}

// rewind returns a request whose body can be sent again on retries.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 || req.Body == nil || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

// scrub replaces the raw URL inside transport errors (url.Error embeds it).
func scrub(err error, rawURL, safeURL string) error {
	if rawURL == safeURL {
		return err
	}
	return &scrubbedError{msg: strings.ReplaceAll(err.Error(), rawURL, safeURL), err: err}
}

type scrubbedError struct {
	msg string
	err error
}

func (s *scrubbedError) Error() string { return s.msg }
func (s *scrubbedError) Unwrap() error { return s.err }

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
