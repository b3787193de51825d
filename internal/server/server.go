// Package server is the HTTP surface of the answer pipeline: one chat
// endpoint plus history, health, metrics and docs, behind optional JWT
// validation. Token issuance belongs to the account service; this package
// only validates.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studysage/sage/internal/assistant"
	"github.com/studysage/sage/internal/retrieval"
	"github.com/studysage/sage/internal/store"
	"github.com/studysage/sage/internal/telemetry"
)

// Options carries HTTP-level settings.
type Options struct {
	Address     string
	JWTSecret   []byte
	CORSOrigins []string
	Logger      *log.Logger
}

// Deps are the collaborators the handlers reach for. Pipeline is required;
// a nil Store or Retrieval just disables persistence and recall.
type Deps struct {
	Pipeline  *assistant.Pipeline
	Store     *store.Store
	Retrieval *retrieval.Store
	Telemetry *telemetry.Telemetry
}

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *log.Logger
}

func New(opts Options, d Deps) (*Server, error) {
	if d.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[http] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler(logger)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if reg := d.Telemetry.Registry(); reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	registerDocs(e)

	api := e.Group("/api")
	if len(opts.JWTSecret) > 0 {
		api.Use(authMiddleware(opts.JWTSecret))
	}
	ch := &ChatHandler{Pipeline: d.Pipeline, Store: d.Store, Retrieval: d.Retrieval, Logger: logger}
	ch.Register(api)

	addr := opts.Address
	if addr == "" {
		addr = ":8080"
	}
	return &Server{echo: e, addr: addr, logger: logger}, nil
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, mainly for httptest servers.
func (s *Server) Handler() http.Handler { return s.echo }

// errorHandler renders every error as structured JSON and logs it with the
// request line, in one place instead of per handler.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}
}
