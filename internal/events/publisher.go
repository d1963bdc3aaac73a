package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys published on the user exchange.
const (
	UserRegistered = "user.registered"
	UserLogin      = "user.login"
)

const userExchange = "user_exchange"

// UserEvent is the message body published after user state changes.
type UserEvent struct {
	UserID   int64     `json:"userId"`
	Username string    `json:"username"`
	OpenID   string    `json:"openId,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher emits user lifecycle events. Implementations must be safe for
// concurrent use; publish failures are logged, never propagated into the
// request path.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event UserEvent)
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange on RabbitMQ.
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// DialAMQP connects to the broker, declares the user exchange, and returns a
// ready publisher.
func DialAMQP(uri string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(userExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", userExchange, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, logger: logger}, nil
}

// Publish sends event to the user exchange under routingKey. Failures are
// logged and swallowed: event delivery is best-effort and must not fail the
// request that triggered it.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event UserEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode user event", "routingKey", routingKey, "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, userExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.logger.Error("publish user event",
			"exchange", userExchange,
			"routingKey", routingKey,
			"userId", event.UserID,
			"error", err,
		)
	}
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NopPublisher discards events, used when no broker is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, UserEvent) {}
func (NopPublisher) Close() error                               { return nil }
