package fred

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/pkg/config"
	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

// Aggregator fetches every series of a job, one after another.
type Aggregator struct {
	logger  *zap.Logger
	fetcher Fetcher
}

// NewAggregator constructs an Aggregator.
func NewAggregator(logger *zap.Logger, fetcher Fetcher) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger, fetcher: fetcher}
}

// Aggregate returns output key -> series for job, spreads included. It fails
// with a *config.ConfigurationError before any request when apiKey is empty or
// the job is invalid, and stops at the first fetch error.
func (a *Aggregator) Aggregate(ctx context.Context, job Job, apiKey string) (map[string]model.Series, error) {
	if apiKey == "" {
		return nil, &config.ConfigurationError{Key: "FRED_API_KEY", Reason: "empty credential"}
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]model.Series, len(job.Series)+len(job.Spreads))
	for _, spec := range job.Series {
		obs, err := a.fetcher.FetchSeries(ctx, spec.ID, apiKey, spec.Start)
		if err != nil {
			a.logger.Error("fred.aggregate_failed",
				zap.String("job", job.Name),
				zap.String("series", spec.ID),
				zap.Error(err))
			return nil, err
		}
		out[spec.OutputKey()] = model.NewSeries(obs)
	}

	for _, sp := range job.Spreads {
		s := Spread(out[sp.Minuend], out[sp.Subtrahend])
		out[sp.Key] = s
		a.logger.Debug("fred.spread_computed",
			zap.String("job", job.Name),
			zap.String("key", sp.Key),
			zap.Int("points", s.Len()))
	}
	return out, nil
}

// Render shapes aggregated series into the job's output document.
// now is the completion time stamped into series-layout documents.
func (j Job) Render(series map[string]model.Series, now time.Time) any {
	if j.Layout == model.LayoutRows {
		return model.Rows(series, j.Columns())
	}

	doc := model.Document{
		LastUpdatedUTC: now.UTC().Format(model.TimestampLayout),
		Series:         series,
	}
	if j.IncludeMeta {
		doc.Meta = make(map[string]string, len(j.Series))
		for _, s := range j.Series {
			doc.Meta[s.OutputKey()] = s.Description
		}
	}
	return doc
}
