package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

// SnapshotKeyPrefix prefixes the Redis key holding the latest document of a job.
const SnapshotKeyPrefix = "fred:snapshot:"

// ErrSnapshotNotFound is returned by GetSnapshot when no document is stored for a job.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store defines the contract for mirroring written documents.
type Store interface {
	SaveSnapshot(ctx context.Context, job string, doc any) error
	GetSnapshot(ctx context.Context, job string, dest any) error
	ListSnapshots(ctx context.Context) ([]string, error)
	RecordObservations(ctx context.Context, seriesID string, series model.Series) (int, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// DBExecutor is the subset of pgxpool.Pool the store writes through.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// HybridStore keeps the latest document per job in Redis and the individual
// observations in Postgres. Either side may be absent.
type HybridStore struct {
	redis  *redis.Client
	db     DBExecutor
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Options selects the backends. An empty RedisAddr or PGURL disables that side.
type Options struct {
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	SnapshotTTL time.Duration // 0 keeps snapshots forever
	PGURL       string
	PG          PGPoolConfig
}

// NewHybrid connects the configured backends and pings them.
func NewHybrid(ctx context.Context, opts Options, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s := &HybridStore{ttl: opts.SnapshotTTL, logger: logger}

	if opts.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			DB:       opts.RedisDB,
			Password: opts.RedisPass,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		s.redis = rdb
	}

	if opts.PGURL != "" {
		cfg, err := pgxpool.ParseConfig(opts.PGURL)
		if err != nil {
			s.closeRedis()
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if opts.PG.MaxConns > 0 {
			cfg.MaxConns = opts.PG.MaxConns
		}
		if opts.PG.MinConns > 0 {
			cfg.MinConns = opts.PG.MinConns
		}
		if opts.PG.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = opts.PG.MaxConnLifetime
		}
		if opts.PG.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = opts.PG.MaxConnIdleTime
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			s.closeRedis()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s.pool = pool
		s.db = pool
	}

	return s, nil
}

// NewWithClients builds a store from already connected clients.
func NewWithClients(rdb *redis.Client, db DBExecutor, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, db: db, logger: logger}
}

// SaveSnapshot stores doc as JSON under fred:snapshot:<job>.
func (s *HybridStore) SaveSnapshot(ctx context.Context, job string, doc any) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", job, err)
	}
	if err := s.redis.Set(ctx, SnapshotKeyPrefix+job, data, s.ttl).Err(); err != nil {
		s.logger.Warn("store.redis.snapshot_failed", zap.String("job", job), zap.Error(err))
		return fmt.Errorf("save snapshot %s: %w", job, err)
	}
	return nil
}

// GetSnapshot loads the latest document of job into dest.
func (s *HybridStore) GetSnapshot(ctx context.Context, job string, dest any) error {
	if s.redis == nil {
		return fmt.Errorf("redis unavailable")
	}
	data, err := s.redis.Get(ctx, SnapshotKeyPrefix+job).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, job)
	} else if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// ListSnapshots returns the jobs that have a stored snapshot.
func (s *HybridStore) ListSnapshots(ctx context.Context) ([]string, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis unavailable")
	}
	var (
		jobs   []string
		cursor uint64
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, SnapshotKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			jobs = append(jobs, k[len(SnapshotKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return jobs, nil
}

// RecordObservations upserts every observation of series into fred.observation.
// Missing values are stored as NULL. It returns the number of rows affected.
func (s *HybridStore) RecordObservations(ctx context.Context, seriesID string, series model.Series) (int, error) {
	if s.db == nil || series.Len() == 0 {
		return 0, nil
	}

	dates := make([]string, 0, series.Len())
	values := make([]*float64, 0, series.Len())
	seen := make(map[string]bool, series.Len())
	for i, d := range series.Dates {
		if seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
		values = append(values, series.Values[i].Ptr())
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO fred.observation (series_id, obs_date, value, fetched_at)
		SELECT $1, d::date, v, NOW()
		FROM unnest($2::text[], $3::float8[]) AS t(d, v)
		ON CONFLICT (series_id, obs_date)
		DO UPDATE SET
			value = EXCLUDED.value,
			fetched_at = EXCLUDED.fetched_at;
	`, seriesID, dates, values)
	if err != nil {
		s.logger.Error("store.pg.observation_upsert_failed",
			zap.String("series", seriesID),
			zap.Error(err))
		return 0, fmt.Errorf("upsert observations %s: %w", seriesID, err)
	}
	return int(tag.RowsAffected()), nil
}

// HealthCheck pings whichever backends are configured.
func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil && s.pool == nil {
		return fmt.Errorf("no backend configured")
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return s.closeRedis()
}

func (s *HybridStore) closeRedis() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}
