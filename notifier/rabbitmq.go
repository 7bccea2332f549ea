package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/clubAuth"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel the notifier uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQConfig selects where notifications are published.
type RabbitMQConfig struct {
	URL   string
	Queue string
	// Exchange is empty for the default exchange, where Queue is the routing
	// key.
	Exchange string
}

// RabbitMQ publishes notifications to a queue.
type RabbitMQ struct {
	pub      Publisher
	exchange string
	key      string
	logger   *slog.Logger
	now      func() time.Time

	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialRabbitMQ connects, opens a channel, and declares a durable queue.
func DialRabbitMQ(cfg RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, errors.New("rabbitmq url and queue are required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
	}

	r := NewRabbitMQ(ch, cfg.Exchange, cfg.Queue, logger)
	r.conn = conn
	r.ch = ch
	return r, nil
}

// NewRabbitMQ wraps an existing publisher. The caller owns its lifecycle.
func NewRabbitMQ(pub Publisher, exchange, routingKey string, logger *slog.Logger) *RabbitMQ {
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitMQ{
		pub:      pub,
		exchange: exchange,
		key:      routingKey,
		logger:   logger.With("notifier", "rabbitmq"),
		now:      time.Now,
	}
}

func (r *RabbitMQ) Send(ctx context.Context, n clubAuth.Notification) error {
	now := r.now()
	body, err := json.Marshal(newMessage(n, now))
	if err != nil {
		return err
	}

	err = r.pub.PublishWithContext(ctx, r.exchange, r.key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.SessionID,
		Type:         string(n.Purpose),
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	r.logger.Debug("notification published", "purpose", string(n.Purpose), "session_id", n.SessionID)
	return nil
}

// Close releases the channel and connection opened by DialRabbitMQ.
func (r *RabbitMQ) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		r.conn.Close()
		return err
	}
	return r.conn.Close()
}
