package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/poker"
)

// Service composes the room broadcaster, the WebSocket handler and the
// optional NATS consumer into the real-time half of the poker gateway.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	config            Config
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	NATS             NATSConsumerConfig
	// UseNATS selects the shared-bus topology. When false the service runs
	// single-instance and events reach rooms through the LocalPublisher.
	UseNATS bool
}

// DefaultConfig returns default gateway configuration (single instance, no
// bus).
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		NATS:             DefaultNATSConsumerConfig(),
	}
}

// NewService creates the gateway service.
func NewService(config Config, auth Authorizer) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig, auth)
	wsHandler := NewWebSocketHandler(connectionManager, auth)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		config:            config,
	}

	if config.UseNATS {
		consumer, err := NewEventConsumer(connectionManager, config.NATS)
		if err != nil {
			return nil, fmt.Errorf("create event consumer: %w", err)
		}
		s.eventConsumer = consumer
	}

	return s, nil
}

// Publisher returns the EventPublisher the poker app should emit through: the
// NATS bus when configured, the in-process broadcaster otherwise.
func (s *Service) Publisher() (poker.EventPublisher, error) {
	if s.config.UseNATS {
		return NewNATSPublisher(s.config.NATS.URL, s.config.NATS.SubjectPrefix)
	}
	return NewLocalPublisher(s.connectionManager), nil
}

// Start runs the broadcaster and, if configured, the bus consumer until ctx
// is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting poker gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("poker gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service.
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("poker gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("poker gateway routes registered")
}

// ConnectionManager exposes the broadcaster for wiring and tests.
func (s *Service) ConnectionManager() *ConnectionManager {
	return s.connectionManager
}
