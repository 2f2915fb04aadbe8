// Package events publishes trip lifecycle changes to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Routing keys
const (
	KeyTripCreated       = "trip.created"
	KeyTripStatusChanged = "trip.status_changed"
	KeyGuideAssigned     = "trip.guide_assigned"
	KeyPaymentPaid       = "payment.paid"
	KeyTicketsReserved   = "event.tickets_reserved"
)

// Event is one domain event
type Event struct {
	Key        string            `json:"key"`
	TripID     string            `json:"trip_id,omitempty"`
	EventID    string            `json:"event_id,omitempty"`
	PaymentID  string            `json:"payment_id,omitempty"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// RoutingKey returns the topic key, suffixed with the target status for transitions
func (e Event) RoutingKey() string {
	if e.To != "" {
		return fmt.Sprintf("%s.%s", e.Key, e.To)
	}
	return e.Key
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Noop discards events
type Noop struct{}

// Publish does nothing
func (Noop) Publish(context.Context, Event) error { return nil }

// Channel is the subset of *amqp.Channel the publisher uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON events to a durable topic exchange
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	logger   *logrus.Logger
	mu       sync.Mutex
}

// Dial connects to RabbitMQ and declares the exchange
func Dial(url, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p, err := NewAMQPPublisher(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher declares the exchange on an open channel
func NewAMQPPublisher(ch Channel, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends one event. Channels are not safe for concurrent publishes.
func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.PublishWithContext(ctx, p.exchange, evt.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.RoutingKey(), err)
	}

	p.logger.WithFields(logrus.Fields{
		"routing_key": evt.RoutingKey(),
		"trip_id":     evt.TripID,
	}).Debug("Event published")
	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
