package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/adapter/websocket"
	"github.com/pscheid92/storepulse/internal/app"
	"github.com/pscheid92/storepulse/internal/domain"
	"github.com/pscheid92/storepulse/internal/platform/config"
	"golang.org/x/sync/singleflight"
)

type hubService interface {
	OnConnect(transport domain.Transport) (*domain.Connection, error)
	OnDisconnect(id uuid.UUID, reason string)
	OnProbeResponse(id uuid.UUID, seq uint64)

	CreateProduct(p domain.Product) domain.Product
	DeleteProduct(id string) error
	ResetProducts() int
	CreateOrder(o domain.Order) (domain.Order, error)
	DeleteOrder(id string) error
	ResetOrders() int

	Products(filter domain.ProductFilter) []domain.Product
	Product(id string) (domain.Product, error)
	Orders(filter domain.OrderFilter) []domain.Order
	RecentEvents(n int) []domain.ConnectionEvent
	Connections() []domain.ConnectionInfo
	Stats() app.Stats
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	hub         hubService
	limits      *ConnectionLimits
	upgrader    gorilla.Upgrader
	connOptions websocket.Options

	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
	connMetrics *metrics.ConnectionMetrics

	healthChecks []HealthCheck
	systemGroup  singleflight.Group
	sampler      func(ctx context.Context) (systemReport, error)
	startTime    time.Time
}

func NewServer(cfg *config.Config, hub hubService, clock clockwork.Clock, reg *prometheus.Registry, connMetrics *metrics.ConnectionMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	limits := NewConnectionLimits(clock, int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst)

	srv := &Server{
		echo:   e,
		config: cfg,
		clock:  clock,
		hub:    hub,
		limits: limits,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     websocket.NewCheckOrigin(cfg.AppURL, cfg.Origins(), cfg.IsDevelopment()),
		},
		connOptions: websocket.Options{
			SendBufferSize: cfg.SendBufferSize,
			WriteTimeout:   cfg.WriteTimeout,
			PingInterval:   cfg.ProbeInterval,
			PongDeadline:   cfg.PongDeadline(),
		},
		registry:     reg,
		httpMetrics:  metrics.NewHTTPMetrics(reg),
		connMetrics:  connMetrics,
		healthChecks: append([]HealthCheck{limits.HealthCheck()}, healthChecks...),
		startTime:    clock.Now(),
	}

	srv.sampler = srv.sampleSystem
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
