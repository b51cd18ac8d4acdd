package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/poker/events"
)

// NATSConsumerConfig holds configuration for the NATS event consumer.
type NATSConsumerConfig struct {
	URL           string
	SubjectPrefix string
}

// DefaultNATSConsumerConfig returns the default consumer configuration.
func DefaultNATSConsumerConfig() NATSConsumerConfig {
	return NATSConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "poker.events",
	}
}

// EventConsumer subscribes to the poker event subjects and fans every event
// out to the local rooms. Each gateway instance runs one; with several
// instances behind a load balancer the shared NATS bus keeps their rooms in
// sync.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            NATSConsumerConfig
}

// NewEventConsumer connects to NATS and returns a consumer.
func NewEventConsumer(cm *ConnectionManager, config NATSConsumerConfig) (*EventConsumer, error) {
	nc, err := connectNATS(config.URL)
	if err != nil {
		return nil, err
	}
	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		config:            config,
	}, nil
}

// Start subscribes to "<prefix>.>" and delivers events until ctx is
// cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	subject := ec.config.SubjectPrefix + ".>"
	sub, err := ec.nc.Subscribe(subject, ec.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	ec.sub = sub

	log.Info().Str("subject", subject).Msg("poker event consumer started")

	<-ctx.Done()
	return ec.Stop()
}

// Stop unsubscribes and closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	if ec.sub != nil {
		if err := ec.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe")
		}
	}
	if ec.nc != nil {
		ec.nc.Close()
	}
	log.Info().Msg("poker event consumer stopped")
	return nil
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	var event events.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal event")
		return
	}

	log.Debug().
		Str("subject", msg.Subject).
		Str("event_type", string(event.Type)).
		Str("project_id", event.ProjectID).
		Msg("event received from bus")

	ec.connectionManager.BroadcastToProject(&event)
}
