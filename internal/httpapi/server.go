// Package httpapi exposes device status, registration and manual refresh over
// HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/fingerctl/internal/config"
	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/finger"
	"github.com/danmuck/fingerctl/internal/observability"
	"github.com/danmuck/fingerctl/internal/poller"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Server binds the device registry and poller to gin routes.
type Server struct {
	ID       string
	Addr     string
	Started  time.Time
	Registry *device.Registry
	Poller   *poller.Poller
	// Open resolves a registration request to a source. Defaults to device.Open.
	Open func(device.Config) (device.Source, error)

	router *gin.Engine
}

func New(id, addr string, corsOrigins []string, registry *device.Registry, p *poller.Poller) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	if registry == nil {
		registry = device.NewRegistry()
	}
	return &Server{
		ID:       id,
		Addr:     addr,
		Started:  time.Now(),
		Registry: registry,
		Poller:   p,
		Open:     device.Open,
		router:   r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// DeviceView is a registered device with its scheduling state.
type DeviceView struct {
	Config device.Config  `json:"config"`
	Status *poller.Status `json:"status,omitempty"`
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"service": s.ID,
			"devices": s.Registry.Len(),
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/devices", func(c *gin.Context) {
		sources := s.Registry.All()
		views := make([]DeviceView, 0, len(sources))
		for _, src := range sources {
			views = append(views, s.view(src))
		}
		c.JSON(http.StatusOK, gin.H{"devices": views})
	})

	s.router.GET("/devices/:id", func(c *gin.Context) {
		src, ok := s.Registry.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusOK, s.view(src))
	})

	s.router.POST("/devices", func(c *gin.Context) {
		var entry config.DeviceEntry
		if err := c.ShouldBindJSON(&entry); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := config.ValidateDevice(entry); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src, err := s.Register(c.Request.Context(), entry)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": finger.KindOf(err).String()})
			return
		}
		c.JSON(http.StatusCreated, s.view(src))
	})

	s.router.DELETE("/devices/:id", func(c *gin.Context) {
		if !s.Unregister(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	s.router.POST("/devices/:id/refresh", func(c *gin.Context) {
		if s.Poller == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "poller not running"})
			return
		}
		snap, err := s.Poller.Refresh(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": finger.KindOf(err).String()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})
}

// Register opens, validates and schedules a device described by entry.
func (s *Server) Register(ctx context.Context, entry config.DeviceEntry) (device.Source, error) {
	src, err := s.open(entry)
	if err != nil {
		return nil, err
	}
	if err := s.Registry.Register(ctx, src); err != nil {
		return nil, err
	}
	s.schedule(src)
	return src, nil
}

// Restore schedules an inventory device without a live check. A terminal that is
// offline at startup is retried by the poller's failure backoff.
func (s *Server) Restore(entry config.DeviceEntry) (device.Source, error) {
	src, err := s.open(entry)
	if err != nil {
		return nil, err
	}
	if err := s.Registry.Add(src); err != nil {
		return nil, err
	}
	s.schedule(src)
	return src, nil
}

// Unregister drops id from the registry and stops polling it.
func (s *Server) Unregister(id string) bool {
	ok := s.Registry.Remove(id)
	if s.Poller != nil {
		ok = s.Poller.Remove(id) || ok
	}
	if ok {
		log.Info().Str("device", id).Msg("device removed")
	}
	return ok
}

func (s *Server) open(entry config.DeviceEntry) (device.Source, error) {
	cfg, err := entry.Device()
	if err != nil {
		return nil, err
	}
	return s.Open(cfg)
}

func (s *Server) schedule(src device.Source) {
	if s.Poller != nil {
		s.Poller.Add(src)
	}
}

func (s *Server) view(src device.Source) DeviceView {
	v := DeviceView{Config: src.Config()}
	if s.Poller != nil {
		if st, ok := s.Poller.Status(v.Config.ID); ok {
			v.Status = &st
		}
	}
	return v
}

func statusFor(err error) int {
	switch finger.KindOf(err) {
	case finger.DeviceAlreadyExists:
		return http.StatusConflict
	case finger.CannotConnect, finger.InvalidResponse:
		return http.StatusBadGateway
	case finger.NotImplemented:
		return http.StatusNotImplemented
	}
	switch {
	case errors.Is(err, poller.ErrTooSoon):
		return http.StatusTooManyRequests
	case errors.Is(err, poller.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, device.ErrUnknownKind), errors.Is(err, device.ErrMissingHost):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Serve listens on s.Addr until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
