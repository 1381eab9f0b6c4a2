// Package api provides the HTTP JSON API and websocket push channel for the
// telemetry bridge.
//
// It exposes the current telemetry snapshot, actuator commands, the optional
// command log, runtime status and Prometheus metrics to browser dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/telemetry-bridge/internal/commandlog"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/config"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/database"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/telemetry-bridge/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BrokerStatus reports whether the broker connection is up.
// *mqtt.Client satisfies it.
type BrokerStatus interface {
	IsConnected() bool
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Metrics config.MetricsConfig
	Logger  *logging.Logger
	Query   *telemetry.QueryService
	Relay   *telemetry.Relay
	Hub     *Hub

	// Optional. Nil disables GET /api/actuator/commands.
	Commands commandlog.Repository
	// Optional. Reported in /api/status and checked by /health when set.
	DB *database.DB
	// Optional. Nil reports the broker as disconnected.
	Broker BrokerStatus

	SourceMode string
	Version    string
}

// Server is the HTTP API server for the telemetry bridge.
//
// It manages the HTTP listener, routes, middleware, and websocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	metricsCfg config.MetricsConfig
	logger     *logging.Logger
	query      *telemetry.QueryService
	relay      *telemetry.Relay
	hub        *Hub
	commands   commandlog.Repository
	db         *database.DB
	broker     BrokerStatus
	sourceMode string
	version    string
	startTime  time.Time
	server     *http.Server
	cancel     context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Query == nil {
		return nil, fmt.Errorf("query service is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("command relay is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("websocket hub is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		metricsCfg: deps.Metrics,
		logger:     deps.Logger,
		query:      deps.Query,
		relay:      deps.Relay,
		hub:        deps.Hub,
		commands:   deps.Commands,
		db:         deps.DB,
		broker:     deps.Broker,
		sourceMode: deps.SourceMode,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start runs the websocket hub and begins listening for HTTP connections
// in a background goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

func (s *Server) brokerConnected() bool {
	return s.broker != nil && s.broker.IsConnected()
}
