// Package server exposes the notebook over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/metrics"
	"github.com/abhisek/mistakebook/internal/notebook"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadBytes bounds multipart image uploads. Zero means 25MB.
	MaxUploadBytes int64

	Auth AuthConfig
}

// Server provides the notebook HTTP API.
type Server struct {
	echo    *echo.Echo
	svc     *notebook.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     Config
}

// New creates a server. metrics may be nil, in which case /metrics is not
// served.
func New(svc *notebook.Service, m *metrics.Metrics, cfg Config, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("notebook service is required")
	}
	if len(cfg.Auth.Secret) == 0 {
		return nil, errors.New("auth.jwt_secret is required to serve the API")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	if m != nil {
		e.Use(metricsMiddleware(m))
	}

	s := &Server{echo: e, svc: svc, metrics: m, logger: logger, cfg: cfg}
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api", authMiddleware(s.cfg.Auth))

	api.POST("/questions", s.handleCreateQuestion)
	api.POST("/questions/image", s.handleCreateQuestionFromImage, middleware.BodyLimit(bodyLimit(s.cfg.MaxUploadBytes)))
	api.GET("/questions", s.handleListQuestions)
	api.GET("/questions/:id", s.handleGetQuestion)
	api.GET("/questions/:id/knowledge", s.handleQuestionKnowledge)
	api.POST("/questions/:id/confirm", s.handleConfirm)

	api.POST("/solve/batch", s.handleSolveBatch)
	api.POST("/solve/locate/:id", s.handleLocate)
	api.POST("/solve/:id", s.handleSolve)

	api.GET("/knowledge", s.handleListKnowledge)
	api.POST("/knowledge", s.handleCreateKnowledge)
	api.GET("/knowledge/popular", s.handlePopularKnowledge)
	api.GET("/knowledge/subjects", s.handleSubjects)
	api.GET("/knowledge/chapters", s.handleChapters)
	api.GET("/knowledge/sections", s.handleSections)
	api.GET("/knowledge/:id", s.handleGetKnowledge)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info("starting http server", zap.String("addr", s.cfg.Addr))
	err := s.echo.StartServer(srv)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(route, c.Request().Method, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
