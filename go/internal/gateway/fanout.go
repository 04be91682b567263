package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// FanoutConfig holds configuration for the cross-instance event mirror
type FanoutConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultFanoutConfig returns default fan-out configuration
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		URL:           nats.DefaultURL,
		Subject:       "chat.events.broadcast",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// fanoutEnvelope wraps an event with its origin so instances skip their own
// publications.
type fanoutEnvelope struct {
	InstanceID string     `json:"instance_id"`
	Event      *ChatEvent `json:"event"`
}

// Fanout mirrors room-wide events between instances over NATS. Delivery is
// best-effort pub/sub: events are live state, not durable records, so a
// missed mirror is corrected by the next persisted read, never replayed.
type Fanout struct {
	nc         *nats.Conn
	sub        *nats.Subscription
	manager    *ConnectionManager
	config     FanoutConfig
	instanceID string
}

// NewFanout connects to NATS and creates the event mirror
func NewFanout(manager *ConnectionManager, config FanoutConfig) (*Fanout, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
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

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Fanout{
		nc:         nc,
		manager:    manager,
		config:     config,
		instanceID: uuid.New().String(),
	}, nil
}

// Start subscribes to the mirror subject and re-delivers remote events to
// local connections.
func (f *Fanout) Start() error {
	sub, err := f.nc.Subscribe(f.config.Subject, func(msg *nats.Msg) {
		var envelope fanoutEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal fan-out envelope")
			return
		}
		if envelope.InstanceID == f.instanceID || envelope.Event == nil {
			return
		}

		f.manager.BroadcastRemote(envelope.Event)
	})
	if err != nil {
		return fmt.Errorf("subscribe to fan-out subject: %w", err)
	}

	f.sub = sub
	log.Info().
		Str("subject", f.config.Subject).
		Str("instance_id", f.instanceID).
		Msg("event fan-out started")
	return nil
}

// Publish mirrors a locally originated event to the other instances
func (f *Fanout) Publish(event *ChatEvent) {
	data, err := json.Marshal(fanoutEnvelope{
		InstanceID: f.instanceID,
		Event:      event,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal fan-out envelope")
		return
	}

	if err := f.nc.Publish(f.config.Subject, data); err != nil {
		log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish fan-out event")
	}
}

// Stop unsubscribes and closes the NATS connection
func (f *Fanout) Stop() {
	if f.sub != nil {
		if err := f.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe fan-out")
		}
	}
	if f.nc != nil {
		f.nc.Close()
	}
}
