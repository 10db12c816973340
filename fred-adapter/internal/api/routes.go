package api

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/fred"
	"github.com/Checker-Finance/plumbing-feed/internal/store"
)

// SnapshotReader is the read side of the snapshot mirror.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, job string, dest any) error
	ListSnapshots(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context) error
}

// FileInfo describes one output file in the data directory.
type FileInfo struct {
	Name     string    `json:"name"`
	Bytes    int64     `json:"bytes"`
	Modified time.Time `json:"modified"`
}

// Handler serves the dashboard data. st may be nil when no mirror is configured.
type Handler struct {
	logger  *zap.Logger
	dataDir string
	st      SnapshotReader
}

func NewHandler(logger *zap.Logger, dataDir string, st SnapshotReader) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, dataDir: dataDir, st: st}
}

// RegisterRoutes mounts the dashboard endpoints. /metrics serves this
// process's registry only; fetcher metrics go through the Pushgateway.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", h.Health)

	// Output files exactly as the fetcher wrote them.
	app.Static("/data", h.dataDir, fiber.Static{CacheDuration: 10 * time.Second})

	v1 := app.Group("/api/v1")
	v1.Get("/snapshots", h.ListSnapshots)
	v1.Get("/snapshots/:job", h.GetSnapshot)
}

// Health reports whether the data directory and the mirror are reachable.
func (h *Handler) Health(c *fiber.Ctx) error {
	checks := map[string]string{"data_dir": "ok"}
	status := "ok"
	code := fiber.StatusOK

	if fi, err := os.Stat(h.dataDir); err != nil {
		checks["data_dir"] = err.Error()
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	} else if !fi.IsDir() {
		checks["data_dir"] = "not a directory"
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	if h.st != nil {
		checks["store"] = "ok"
		healthCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

// ListSnapshots lists the JSON files in the data directory and, when a
// mirror is configured, the jobs it holds.
func (h *Handler) ListSnapshots(c *fiber.Ctx) error {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Error("api.list_data_dir_failed", zap.String("dir", h.dataDir), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "cannot read data directory")
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Bytes: info.Size(), Modified: info.ModTime().UTC()})
	}

	resp := fiber.Map{"files": files}
	if h.st != nil {
		jobs, err := h.st.ListSnapshots(c.UserContext())
		if err != nil {
			h.logger.Warn("api.list_snapshots_failed", zap.Error(err))
		} else {
			sort.Strings(jobs)
			resp["mirrored"] = jobs
		}
	}
	return c.JSON(resp)
}

// GetSnapshot returns the mirrored document of a job, falling back to the
// job's file in the data directory.
func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	job := c.Params("job")

	if h.st != nil {
		var doc json.RawMessage
		err := h.st.GetSnapshot(c.UserContext(), job, &doc)
		if err == nil {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(doc)
		}
		if !errors.Is(err, store.ErrSnapshotNotFound) {
			h.logger.Warn("api.get_snapshot_failed", zap.String("job", job), zap.Error(err))
		}
	}

	name := filepath.Base(job)
	if preset, ok := fred.Presets[job]; ok {
		name = preset.Output
	} else if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	data, err := os.ReadFile(filepath.Join(h.dataDir, name))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "snapshot not found: "+job)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}
