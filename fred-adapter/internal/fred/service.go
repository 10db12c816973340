package fred

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/metrics"
	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/output"
	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

// SnapshotStore mirrors written documents. Implemented by store.HybridStore.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, job string, doc any) error
	RecordObservations(ctx context.Context, seriesID string, series model.Series) (int, error)
}

// EventPublisher announces written documents.
type EventPublisher interface {
	PublishSnapshot(ctx context.Context, evt model.SnapshotEvent) error
}

// ServiceOptions wires a Service. Store and Publisher are optional.
type ServiceOptions struct {
	OutputDir string
	APIKey    string
	Jobs      []Job
	Store     SnapshotStore
	Publisher EventPublisher
	Stdout    io.Writer
	Now       func() time.Time
}

// Service runs jobs end to end: aggregate, render, write, then mirror.
type Service struct {
	logger *zap.Logger
	agg    *Aggregator
	opts   ServiceOptions
	runID  uuid.UUID
}

// NewService constructs a Service around an aggregator.
func NewService(logger *zap.Logger, agg *Aggregator, opts ServiceOptions) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		logger: logger,
		agg:    agg,
		opts:   opts,
		runID:  uuid.New(),
	}
}

// RunID identifies this invocation in logs and events.
func (s *Service) RunID() uuid.UUID { return s.runID }

// Run fetches every job first and writes output only once all of them have
// succeeded, so a failed run leaves every existing file untouched. Jobs are
// fetched and written in order.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("fred.run_started",
		zap.String("run_id", s.runID.String()),
		zap.Int("jobs", len(s.opts.Jobs)))

	fetched := make([]map[string]model.Series, 0, len(s.opts.Jobs))
	for _, job := range s.opts.Jobs {
		series, err := s.agg.Aggregate(ctx, job, s.opts.APIKey)
		if err != nil {
			metrics.IncError("service", "aggregate")
			metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		fetched = append(fetched, series)
	}

	for i, job := range s.opts.Jobs {
		if err := s.writeJob(ctx, job, fetched[i]); err != nil {
			metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
	}
	return nil
}

// RunJob fetches, writes and mirrors a single job. The output file is only
// touched once every series has been fetched.
func (s *Service) RunJob(ctx context.Context, job Job) error {
	series, err := s.agg.Aggregate(ctx, job, s.opts.APIKey)
	if err != nil {
		metrics.IncError("service", "aggregate")
		return err
	}
	return s.writeJob(ctx, job, series)
}

func (s *Service) writeJob(ctx context.Context, job Job, series map[string]model.Series) error {
	started := time.Now()

	now := s.opts.Now()
	doc := job.Render(series, now)
	path := filepath.Join(s.opts.OutputDir, job.Output)

	n, err := output.WriteJSON(path, doc, job.Indent)
	if err != nil {
		metrics.IncError("service", "write")
		s.logger.Error("fred.write_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	metrics.LastSuccess.WithLabelValues(job.Name).Set(float64(now.Unix()))

	keys := make([]string, 0, len(series))
	total := 0
	for k, ser := range series {
		keys = append(keys, k)
		total += ser.Len()
	}
	sort.Strings(keys)

	s.mirror(ctx, job, doc, series)
	s.publish(ctx, model.SnapshotEvent{
		ID:           uuid.New(),
		RunID:        s.runID,
		Job:          job.Name,
		Path:         path,
		Layout:       job.Layout,
		Series:       keys,
		Observations: total,
		Timestamp:    now.UTC(),
	})

	s.logger.Info("fred.job_complete",
		zap.String("job", job.Name),
		zap.String("path", path),
		zap.Int("bytes", n),
		zap.Int("observations", total),
		zap.Duration("elapsed", time.Since(started)))

	_, _ = fmt.Fprintf(s.opts.Stdout, "OK -> %s\n", path)
	return nil
}

func (s *Service) mirror(ctx context.Context, job Job, doc any, series map[string]model.Series) {
	if s.opts.Store == nil {
		return
	}
	if err := s.opts.Store.SaveSnapshot(ctx, job.Name, doc); err != nil {
		metrics.IncError("store", "snapshot")
		s.logger.Warn("fred.mirror_snapshot_failed", zap.String("job", job.Name), zap.Error(err))
	}
	for _, spec := range job.Series {
		rows, err := s.opts.Store.RecordObservations(ctx, spec.ID, series[spec.OutputKey()])
		if err != nil {
			metrics.IncError("store", "observations")
			s.logger.Warn("fred.mirror_observations_failed",
				zap.String("job", job.Name),
				zap.String("series", spec.ID),
				zap.Error(err))
			continue
		}
		s.logger.Debug("fred.observations_recorded",
			zap.String("series", spec.ID),
			zap.Int("rows", rows))
	}
}

func (s *Service) publish(ctx context.Context, evt model.SnapshotEvent) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.PublishSnapshot(ctx, evt); err != nil {
		s.logger.Warn("fred.publish_failed", zap.String("job", evt.Job), zap.Error(err))
	}
}
