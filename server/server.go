// Package server exposes the dispatch and adapter layers over HTTP. Every
// response body is an envelope; handler panics and internal failures are
// converted, never leaked as stack traces.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TOoSmOotH/homie-sub000/adapter"
	"github.com/TOoSmOotH/homie-sub000/dispatch"
	"github.com/TOoSmOotH/homie-sub000/envelope"
	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/logger"
	"github.com/TOoSmOotH/homie-sub000/store"
)

// Config configures the HTTP edge.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server is the daemon's HTTP edge.
type Server struct {
	cfg        Config
	engine     *gin.Engine
	httpServer *http.Server

	dispatcher *dispatch.Dispatcher
	factory    *adapter.Factory
	discovery  *adapter.Discovery
	services   store.ServiceStore
	log        *logger.Logger
}

// New assembles the HTTP edge around its collaborators.
func New(cfg Config, d *dispatch.Dispatcher, f *adapter.Factory, disc *adapter.Discovery, services store.ServiceStore, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Get("server")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		cfg:        cfg,
		engine:     engine,
		dispatcher: d,
		factory:    f,
		discovery:  disc,
		services:   services,
		log:        log,
	}

	engine.Use(s.recovery(), s.requestLog())
	s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", map[string]interface{}{"addr": s.cfg.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/services/:id/endpoints/:endpoint", s.executeEndpoint)
	api.GET("/services/:id/health", s.serviceHealth)
	api.POST("/adapters/validate", s.validateConfig)
	api.POST("/adapters/discover", s.discover)
}

// executeRequest is the body of an endpoint execution call.
type executeRequest struct {
	Params map[string]any `json:"params"`
}

func (s *Server) executeEndpoint(c *gin.Context) {
	var req executeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeEnvelope(c, envelope.Fail(
				errors.Validation("body", "request body is not valid JSON").WithCause(err), 0))
			return
		}
	}

	env := s.dispatcher.Execute(c.Request.Context(), c.Param("id"), c.Param("endpoint"), req.Params)
	writeEnvelope(c, env)
}

func (s *Server) serviceHealth(c *gin.Context) {
	start := time.Now()
	serviceID := c.Param("id")

	svc, err := s.services.GetService(c.Request.Context(), serviceID)
	if err != nil {
		writeEnvelope(c, envelope.Fail(
			errors.NotFound("service", serviceID).WithCause(err),
			time.Since(start), envelope.WithOperation("health")))
		return
	}

	a, err := s.factory.Get(svc.Type, adapterConfigFromService(svc))
	if err != nil {
		writeEnvelope(c, envelope.Fail(err, time.Since(start),
			envelope.WithServiceType(svc.Type), envelope.WithOperation("health")))
		return
	}

	opts := []envelope.Option{
		envelope.WithServiceType(svc.Type),
		envelope.WithOperation("health"),
	}
	if err := a.HealthCheck(c.Request.Context()); err != nil {
		writeEnvelope(c, envelope.Fail(err, time.Since(start), opts...))
		return
	}
	writeEnvelope(c, envelope.OK(gin.H{
		"healthy": true,
		"state":   a.State(),
	}, time.Since(start), opts...))
}

// validateRequest is the body of a config validation call.
type validateRequest struct {
	ServiceType string         `json:"serviceType" binding:"required"`
	Config      adapter.Config `json:"config"`
}

func (s *Server) validateConfig(c *gin.Context) {
	start := time.Now()
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, envelope.Fail(
			errors.Validation("body", "serviceType and config are required").WithCause(err), time.Since(start)))
		return
	}

	result := s.factory.ValidateConfig(req.ServiceType, req.Config)
	writeEnvelope(c, envelope.OK(result, time.Since(start),
		envelope.WithServiceType(req.ServiceType), envelope.WithOperation("validate")))
}

// discoverRequest is the body of a discovery call.
type discoverRequest struct {
	Host  string   `json:"host" binding:"required"`
	Types []string `json:"types"`
}

func (s *Server) discover(c *gin.Context) {
	start := time.Now()
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, envelope.Fail(
			errors.Validation("body", "host is required").WithCause(err), time.Since(start)))
		return
	}

	results := s.discovery.Discover(c.Request.Context(), req.Host, req.Types...)
	writeEnvelope(c, envelope.OK(results, time.Since(start), envelope.WithOperation("discover")))
}

// writeEnvelope maps an envelope onto the HTTP layer: successes are 200,
// failures reuse the classified status or fall back to 502.
func writeEnvelope(c *gin.Context, env *envelope.Envelope) {
	status := http.StatusOK
	if !env.Success {
		status = http.StatusBadGateway
		if env.Error != nil && env.Error.HTTPStatus != 0 {
			status = env.Error.HTTPStatus
		}
	}
	c.JSON(status, env)
}

// adapterConfigFromService maps a stored service record onto an adapter
// configuration.
func adapterConfigFromService(svc *store.Service) adapter.Config {
	cfg := adapter.Config{}
	if v, ok := svc.Config["host"].(string); ok {
		cfg.Host = v
	}
	switch v := svc.Config["port"].(type) {
	case int:
		cfg.Port = v
	case float64:
		cfg.Port = int(v)
	}
	if v, ok := svc.Config["useSsl"].(bool); ok {
		cfg.UseSSL = v
	}
	if v, ok := svc.Config["skipTlsVerify"].(bool); ok {
		cfg.SkipTLSVerify = v
	}
	if v, ok := svc.Config["apiKey"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := svc.Config["token"].(string); ok {
		cfg.Token = v
	}
	if v, ok := svc.Config["username"].(string); ok {
		cfg.Username = v
	}
	if v, ok := svc.Config["password"].(string); ok {
		cfg.Password = v
	}
	return cfg
}

// recovery converts handler panics into error envelopes.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("handler panic", map[string]interface{}{
					"path":            c.Request.URL.Path,
					logger.FieldError: fmt.Sprint(r),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					envelope.Fail(errors.New(errors.CodeTransport, "internal error"), 0))
			}
		}()
		c.Next()
	}
}

// requestLog emits one structured line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request", map[string]interface{}{
			"method":             c.Request.Method,
			"path":               c.Request.URL.Path,
			logger.FieldStatus:   c.Writer.Status(),
			logger.FieldDuration: time.Since(start).Milliseconds(),
		})
	}
}
