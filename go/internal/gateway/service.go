package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/gate"
	"github.com/chylnx/hub/go/internal/presence"
)

// Service is the chat gateway: WebSocket connections, command routing and
// event broadcasting behind one surface.
type Service struct {
	connectionManager *ConnectionManager
	broadcaster       *EventBroadcaster
	router            *Router
	wsHandler         *WebSocketHandler
	paymentHandler    *PaymentHandler
	fanout            *Fanout
}

// Config holds configuration for the chat gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	FanoutConfig     FanoutConfig
	FanoutEnabled    bool
	DefaultAmount    string
}

// DefaultConfig returns default configuration for the chat gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		FanoutConfig:     DefaultFanoutConfig(),
	}
}

// Deps are the domain services the gateway dispatches into
type Deps struct {
	Registry   *presence.Registry
	Gate       *gate.Gate
	Identities IdentityService
	Messages   MessageService
	Timers     TimerService
	Session    SessionService
	Settings   ChallengeStore
	Payments   PaymentService
}

// NewService wires the connection manager, router and handlers together
func NewService(config Config, deps Deps) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	broadcaster := NewEventBroadcaster(connectionManager)

	router := NewRouter(deps.Registry, deps.Gate, deps.Messages, deps.Timers, deps.Session, deps.Settings, connectionManager)
	connectionManager.SetHandler(router)

	wsHandler := NewWebSocketHandler(connectionManager, deps.Identities, deps.Gate, router)
	paymentHandler := NewPaymentHandler(deps.Payments, deps.Identities, config.DefaultAmount)

	service := &Service{
		connectionManager: connectionManager,
		broadcaster:       broadcaster,
		router:            router,
		wsHandler:         wsHandler,
		paymentHandler:    paymentHandler,
	}

	if config.FanoutEnabled {
		fanout, err := NewFanout(connectionManager, config.FanoutConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event fan-out: %w", err)
		}
		connectionManager.SetFanout(fanout)
		service.fanout = fanout
	}

	return service, nil
}

// Broadcaster returns the fan-out sink for the domain apps that push events
// outside a client command, the timer completions in particular.
func (s *Service) Broadcaster() *EventBroadcaster {
	return s.broadcaster
}

// Start begins the gateway service and blocks until the context is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting chat gateway service")

	go s.connectionManager.Start(ctx)

	if s.fanout != nil {
		if err := s.fanout.Start(); err != nil {
			return fmt.Errorf("failed to start event fan-out: %w", err)
		}
	}

	<-ctx.Done()

	log.Info().Msg("chat gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.fanout != nil {
		s.fanout.Stop()
	}

	log.Info().Msg("chat gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and payment HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.paymentHandler.RegisterPaymentRoutes(mux)
	log.Info().Msg("chat gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "chat_gateway"
	stats["status"] = "running"
	return stats
}
