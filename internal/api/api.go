// internal/api/api.go
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/errors"
	"github.com/autolabelhq/autolabel-go/internal/imagestore"
	"github.com/autolabelhq/autolabel-go/internal/ingest"
	"github.com/autolabelhq/autolabel-go/internal/labeling"
	"github.com/autolabelhq/autolabel-go/internal/logging"
	"github.com/autolabelhq/autolabel-go/internal/observability"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Blobs    imagestore.Interface

	Pipeline   *ingest.Pipeline
	Workflow   *labeling.Workflow
	Aggregator *labeling.Aggregator
	Metrics    *observability.Metrics

	projectCache   *cache.Cache // cache for project lookups
	apiLogger      *slog.Logger
	apiLoggerClose func() error
	startTime      time.Time
}

// projectCacheTTL bounds staleness of cached project rows. Projects are
// immutable after creation, so only newly created projects matter here.
const projectCacheTTL = 5 * time.Minute

// New creates a new API controller with all routes registered.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, blobs imagestore.Interface,
	pipeline *ingest.Pipeline, workflow *labeling.Workflow, aggregator *labeling.Aggregator,
	metrics *observability.Metrics) *Controller {

	c := &Controller{
		Echo:         e,
		DS:           ds,
		Settings:     settings,
		Blobs:        blobs,
		Pipeline:     pipeline,
		Workflow:     workflow,
		Aggregator:   aggregator,
		Metrics:      metrics,
		projectCache: cache.New(projectCacheTTL, 2*projectCacheTTL),
		startTime:    time.Now(),
	}

	// Initialize the API structured logger
	logFilePath := filepath.Join("logs", "api.log")
	var err error
	c.apiLogger, c.apiLoggerClose, err = logging.NewFileLogger(logFilePath, "api", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize API file logger: %v. API logging disabled.", err)
		c.apiLogger = slog.New(slog.NewJSONHandler(io.Discard, nil)).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Echo.Use(middleware.Recover())
	c.Echo.Use(middleware.CORS())

	c.Group = c.Echo.Group("/api/v1")

	c.Group.GET("/health", c.HealthCheck)

	c.initProjectRoutes()
	c.initImageRoutes()

	c.Echo.GET("/media/:key", c.ServeImage)
	c.Echo.GET("/metrics", echo.WrapHandler(c.Metrics.Handler()))
}

// Start runs the HTTP server until the context is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		if err := c.Echo.Start(":" + c.Settings.WebServer.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	c.apiLogger.Info("API server started", "port", c.Settings.WebServer.Port)

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP server and closes the API log file.
func (c *Controller) Shutdown(ctx context.Context) error {
	err := c.Echo.Shutdown(ctx)
	if c.apiLoggerClose != nil {
		if closeErr := c.apiLoggerClose(); closeErr != nil {
			c.apiLogger.Error("failed to close API log file", "error", closeErr)
		}
	}
	return err
}

// HealthCheck returns service status information.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        c.Settings.Version,
		"build_date":     c.Settings.BuildDate,
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
	})
}

// handleError maps error categories to HTTP status codes and writes a JSON
// error response.
func (c *Controller) handleError(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.HasCategory(err, errors.CategoryNotFound):
		status = http.StatusNotFound
	case errors.HasCategory(err, errors.CategoryValidation):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		c.apiLogger.Error("request failed",
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"error", err)
	}

	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

// cachedProject returns a project through the lookup cache.
func (c *Controller) cachedProject(id uint) (datastore.Project, error) {
	cacheKey := fmt.Sprintf("project:%d", id)
	if cached, found := c.projectCache.Get(cacheKey); found {
		return cached.(datastore.Project), nil
	}

	project, err := c.DS.GetProject(id)
	if err != nil {
		return datastore.Project{}, err
	}
	c.projectCache.Set(cacheKey, project, cache.DefaultExpiration)
	return project, nil
}
