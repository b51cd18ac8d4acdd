package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/poker/events"
)

// LocalPublisher delivers events straight to the in-process room broadcaster.
// It is the single-instance wiring: no bus hop, same at-most-once semantics.
type LocalPublisher struct {
	connectionManager *ConnectionManager
}

// NewLocalPublisher creates a publisher bound to the given broadcaster.
func NewLocalPublisher(cm *ConnectionManager) *LocalPublisher {
	return &LocalPublisher{connectionManager: cm}
}

// Publish hands the event to the room broadcaster.
func (p *LocalPublisher) Publish(ctx context.Context, event *events.Event) error {
	p.connectionManager.BroadcastToProject(event)
	return nil
}

// NATSPublisher publishes room events to a NATS subject per project, letting
// any number of gateway instances fan the same event out to their own rooms.
// Core NATS pub/sub only: delivery is best-effort at-most-once, which is all
// the room protocol promises.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := connectNATS(url)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix}, nil
}

// Publish emits the event on "<prefix>.<project_id>".
func (p *NATSPublisher) Publish(ctx context.Context, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, event.ProjectID)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_type", string(event.Type)).
		Msg("event published")
	return nil
}

// Close closes the underlying NATS connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// connectNATS dials NATS with the reconnect handlers used across the service.
func connectNATS(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
