package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/IvanShishkin/filemq/internal/config"
	"github.com/IvanShishkin/filemq/pkg/models"
)

// Publish error kinds.
var (
	// ErrNotConnected is returned by Publish when no live channel exists.
	ErrNotConnected = errors.New("not connected to broker")
	// ErrUnroutable is returned when the broker bounced the message back.
	// The connection is fine, so no reconnect is attempted.
	ErrUnroutable = errors.New("message returned as unroutable")
	// ErrNotConfirmed is returned when the broker nacked the publish.
	ErrNotConfirmed = errors.New("publish not confirmed by broker")
)

// connection and channel mirror the slice of the amqp091 API the publisher
// touches, so the reconnect/retry contract can be exercised without a broker.
type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Confirm(noWait bool) error
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	PublishWithDeferredConfirm(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (confirmation, error)
}

type confirmation interface {
	Wait() bool
}

type dialFunc func(url string) (connection, error)

// amqpDial is the production dialer. Heartbeat and dial timeout mirror the
// values long scans need to survive idle stretches.
func amqpDial(url string) (connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 600 * time.Second,
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn}, nil
}

type amqpConnection struct{ *amqp.Connection }

func (c *amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return &amqpChannel{ch}, nil
}

type amqpChannel struct{ *amqp.Channel }

func (c *amqpChannel) PublishWithDeferredConfirm(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (confirmation, error) {
	conf, err := c.Channel.PublishWithDeferredConfirm(exchange, key, mandatory, immediate, msg)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// Publisher owns a single broker connection/channel pair and publishes
// records with delivery confirmation. Not safe for concurrent use; the
// pipeline publishes strictly in sequence.
type Publisher struct {
	cfg    *config.Config
	logger *zap.Logger
	dial   dialFunc

	conn    connection
	ch      channel
	returns chan amqp.Return

	// newBackOff builds the wait policy between connection attempts.
	newBackOff func() backoff.BackOff

	messageCount uint64
}

// NewPublisher creates a publisher for the configured queue. No connection
// is made until Connect is called.
func NewPublisher(cfg *config.Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		logger: logger,
		dial:   amqpDial,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			return b
		},
	}
}

// Connect establishes the broker connection with exponential backoff, up to
// the configured retry count. On success the durable queue is declared
// (idempotent) and the channel is put into confirm mode.
func (p *Publisher) Connect() error {
	p.closeQuietly()

	attempt := 0
	operation := func() error {
		attempt++
		p.logger.Info("Connecting to RabbitMQ",
			zap.String("host", p.cfg.Host),
			zap.Int("port", p.cfg.Port),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", p.cfg.MaxRetries))

		conn, err := p.dial(p.cfg.AMQPURL())
		if err != nil {
			p.logger.Error("Connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			p.logger.Error("Failed to open channel", zap.Error(err))
			return err
		}

		if _, err := ch.QueueDeclare(p.cfg.QueueName, true, false, false, false, nil); err != nil {
			conn.Close()
			p.logger.Error("Failed to declare queue", zap.String("queue", p.cfg.QueueName), zap.Error(err))
			return err
		}

		if err := ch.Confirm(false); err != nil {
			conn.Close()
			p.logger.Error("Failed to enable publisher confirms", zap.Error(err))
			return err
		}

		p.conn = conn
		p.ch = ch
		p.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
		return nil
	}

	maxRetries := p.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(p.newBackOff(), uint64(maxRetries))); err != nil {
		p.logger.Error("Max retries reached. Connection failed.", zap.Error(err))
		return fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	p.logger.Info("Successfully connected to RabbitMQ")
	return nil
}

// Disconnect closes the connection. Errors during close are logged and
// swallowed; the publisher always ends up disconnected.
func (p *Publisher) Disconnect() {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			p.logger.Error("Error closing connection", zap.Error(err))
		} else {
			p.logger.Info("RabbitMQ connection closed")
		}
	}
	p.conn = nil
	p.ch = nil
	p.returns = nil
}

// Publish serializes the record and publishes it to the queue with
// persistence and delivery confirmation. On a connection or channel error it
// reconnects once and retries that one message once; an unroutable return or
// a broker nack is reported without a reconnect.
func (p *Publisher) Publish(record *models.FileRecord) error {
	// State check, not liveness: a dropped-but-not-disconnected connection
	// is caught by the health check or the publish error path below.
	if p.conn == nil || p.ch == nil {
		p.logger.Error("Cannot publish: not connected to RabbitMQ")
		return ErrNotConnected
	}

	// Periodic connection health check for long-running scans. A failed
	// inline reconnect leaves no channel to publish on, so the message is
	// reported as failed instead of falling through to a nil channel.
	p.messageCount++
	interval := uint64(p.cfg.HealthCheckInterval)
	if interval > 0 && p.messageCount%interval == 0 {
		if err := p.ensureConnectionAlive(); err != nil {
			return ErrNotConnected
		}
	}

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		p.logger.Error("Unexpected error serializing message", zap.Error(err))
		return err
	}

	err = p.publishOnce(body)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrUnroutable) {
		p.logger.Error("Message was returned as unroutable", zap.String("file", record.Path))
		return err
	}

	// A nack is a broker decision on a live connection, not a transport
	// fault. Reconnecting would not change the outcome.
	if errors.Is(err, ErrNotConfirmed) {
		p.logger.Error("Message was not confirmed by broker", zap.String("file", record.Path))
		return err
	}

	p.logger.Error("Failed to publish message",
		zap.String("file", record.Path),
		zap.Error(err))

	// Attempt to reconnect, then retry exactly once.
	p.logger.Info("Attempting to reconnect...")
	if connErr := p.Connect(); connErr != nil {
		return err
	}

	if retryErr := p.publishOnce(body); retryErr != nil {
		p.logger.Error("Retry failed", zap.String("file", record.Path), zap.Error(retryErr))
		return retryErr
	}

	return nil
}

// publishOnce performs a single confirmed publish of an already-serialized
// body. Mandatory routing surfaces unroutable messages via the return
// channel instead of dropping them silently.
func (p *Publisher) publishOnce(body []byte) error {
	conf, err := p.ch.PublishWithDeferredConfirm(p.cfg.Exchange, p.cfg.QueueName, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return err
	}

	if !conf.Wait() {
		return ErrNotConfirmed
	}

	// A mandatory message the broker could not route comes back on the
	// return channel before the confirm.
	select {
	case ret, ok := <-p.returns:
		if ok {
			return fmt.Errorf("%w: %s", ErrUnroutable, ret.ReplyText)
		}
	default:
	}

	return nil
}

// ensureConnectionAlive reconnects if the connection has gone away between
// health check intervals.
func (p *Publisher) ensureConnectionAlive() error {
	if p.conn != nil && !p.conn.IsClosed() {
		return nil
	}

	p.logger.Warn("Connection lost, attempting to reconnect...")
	if err := p.Connect(); err != nil {
		p.logger.Error("Health check reconnect failed", zap.Error(err))
		return err
	}
	return nil
}

// IsConnected reports whether a live connection and channel both exist.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.ch != nil && !p.conn.IsClosed()
}

// closeQuietly tears down any previous connection before a (re)connect.
func (p *Publisher) closeQuietly() {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			p.logger.Debug("Error closing stale connection", zap.Error(err))
		}
	}
	p.conn = nil
	p.ch = nil
	p.returns = nil
}
