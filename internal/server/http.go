// Package server provides the HTTP side of the service: the public
// paste file server, a health endpoint, and optional Prometheus
// metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tmphost/internal/version"
)

// Server wraps the Echo server.
type Server struct {
	echo *echo.Echo
}

// Config holds server configuration options.
type Config struct {
	// StaticRoot serves paste files from a local directory when set.
	// Empty when an object-store backend hosts the files itself.
	StaticRoot string

	MetricsEnabled  bool
	MetricsEndpoint string

	// Gatherer backs the metrics endpoint; the default registry is
	// used when nil.
	Gatherer prometheus.Gatherer
}

// New creates the HTTP server.
func New(cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/health", handleHealth)

	if cfg != nil && cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize to prevent traversal
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}

		handler := promhttp.Handler()
		if cfg.Gatherer != nil {
			handler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
		}
		e.GET(metricsPath, echo.WrapHandler(handler))
	}

	if cfg != nil && cfg.StaticRoot != "" {
		e.Static("/", cfg.StaticRoot)
	}

	return &Server{echo: e}
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, allowing Server to be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
