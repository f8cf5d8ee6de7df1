package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/IvanShishkin/filemq/internal/config"
)

// Consumer fetches messages from the scan queue for verification. It is a
// debugging aid for inspecting what the scanner published, not a processing
// pipeline: messages are pulled one at a time with basic.get.
type Consumer struct {
	cfg    *config.Config
	logger *zap.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer creates a consumer for the configured queue.
func NewConsumer(cfg *config.Config, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, logger: logger}
}

// Connect dials the broker once and declares the queue so reading an empty,
// not-yet-created queue does not error.
func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.AMQPURL())
	if err != nil {
		return fmt.Errorf("could not connect to RabbitMQ at %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(c.cfg.QueueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.QueueName, err)
	}

	c.conn = conn
	c.ch = ch
	c.logger.Info("Connected to RabbitMQ",
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port),
		zap.String("queue", c.cfg.QueueName))
	return nil
}

// Fetch reads up to count messages, invoking handle for each body. When ack
// is true messages are acknowledged (removed); otherwise they are requeued
// on disconnect. Returns the number of messages read.
func (c *Consumer) Fetch(count int, ack bool, handle func(body []byte)) (int, error) {
	if c.ch == nil {
		return 0, ErrNotConnected
	}

	read := 0
	for i := 0; i < count; i++ {
		delivery, ok, err := c.ch.Get(c.cfg.QueueName, false)
		if err != nil {
			return read, fmt.Errorf("failed to get message: %w", err)
		}
		if !ok {
			break
		}

		read++
		handle(delivery.Body)

		if ack {
			if err := delivery.Ack(false); err != nil {
				return read, fmt.Errorf("failed to ack message: %w", err)
			}
		}
	}

	return read, nil
}

// Disconnect closes the connection; errors are logged and swallowed.
func (c *Consumer) Disconnect() {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Error closing connection", zap.Error(err))
		}
	}
	c.conn = nil
	c.ch = nil
}
