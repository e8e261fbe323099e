package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection and topology configuration
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	VHost      string
	Exchange   string
	Queue      string
	RoutingKey string

	// VisibilityTimeout is how long a rejected message stays parked in
	// the retry queue before it is dead-lettered back onto the work
	// queue. It must be provisioned generously relative to worst-case
	// handler duration.
	VisibilityTimeout time.Duration

	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
}

// Client represents a RabbitMQ client bound to one work queue plus its
// companion retry queue.
type Client struct {
	config      *Config
	conn        *amqp.Connection
	channel     *amqp.Channel
	logger      *slog.Logger
	closeChan   chan *amqp.Error
	isConnected bool
}

// NewClient creates a new RabbitMQ client and declares the topology.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config:      config,
		logger:      logger,
		closeChan:   make(chan *amqp.Error),
		isConnected: false,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Client) connect() error {
	var err error

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.config.RetryAttempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			c.logger.Info("Successfully connected to RabbitMQ")
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < c.config.RetryAttempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", c.config.RetryAttempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup topology: %w", err)
	}

	c.closeChan = make(chan *amqp.Error)
	c.channel.NotifyClose(c.closeChan)
	c.isConnected = true

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.Exchange),
		slog.String("queue", c.config.Queue),
		slog.Duration("visibility_timeout", c.config.VisibilityTimeout),
	)

	return nil
}

func (c *Client) retryExchange() string { return c.config.Exchange + ".retry" }
func (c *Client) retryQueue() string    { return c.config.Queue + ".retry" }

// setup declares the work queue and its retry queue. A message rejected
// on the work queue dead-letters into the retry queue, sits there for
// the visibility timeout, then dead-letters back onto the work queue.
func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(
		c.config.Exchange, // name
		"direct",          // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.channel.ExchangeDeclare(
		c.retryExchange(),
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare retry exchange: %w", err)
	}

	if _, err := c.channel.QueueDeclare(
		c.config.Queue, // name
		true,           // durable
		false,          // auto-delete
		false,          // exclusive
		false,          // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    c.retryExchange(),
			"x-dead-letter-routing-key": c.config.RoutingKey,
		},
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if _, err := c.channel.QueueDeclare(
		c.retryQueue(),
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl":             c.config.VisibilityTimeout.Milliseconds(),
			"x-dead-letter-exchange":    c.config.Exchange,
			"x-dead-letter-routing-key": c.config.RoutingKey,
		},
	); err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	if err := c.channel.QueueBind(
		c.config.Queue,
		c.config.RoutingKey,
		c.config.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := c.channel.QueueBind(
		c.retryQueue(),
		c.config.RoutingKey,
		c.retryExchange(),
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind retry queue: %w", err)
	}

	return nil
}

// Publish publishes a persistent JSON message onto the work queue.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	err := c.channel.PublishWithContext(
		ctx,
		c.config.Exchange,
		c.config.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("Failed to publish message to RabbitMQ",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.Int("body_size", len(body)),
	)

	return nil
}

// Get fetches at most one message from the work queue without
// acknowledging it. ok is false when the queue is empty.
func (c *Client) Get() (body []byte, tag uint64, redelivered bool, ok bool, err error) {
	if !c.isConnected {
		return nil, 0, false, false, fmt.Errorf("not connected to RabbitMQ")
	}

	delivery, ok, err := c.channel.Get(c.config.Queue, false)
	if err != nil {
		return nil, 0, false, false, fmt.Errorf("failed to get message: %w", err)
	}
	if !ok {
		return nil, 0, false, false, nil
	}

	return delivery.Body, delivery.DeliveryTag, delivery.Redelivered, true, nil
}

// Ack acknowledges a delivery, removing it from the queue for good.
func (c *Client) Ack(tag uint64) error {
	if err := c.channel.Ack(tag, false); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Reject refuses a delivery without requeueing it directly; the
// dead-letter binding parks it in the retry queue until the visibility
// timeout elapses.
func (c *Client) Reject(tag uint64) error {
	if err := c.channel.Reject(tag, false); err != nil {
		return fmt.Errorf("failed to reject message: %w", err)
	}
	return nil
}

// Depth returns the approximate number of ready messages on the work
// queue.
func (c *Client) Depth() (int, error) {
	if !c.isConnected {
		return 0, fmt.Errorf("not connected to RabbitMQ")
	}

	state, err := c.channel.QueueDeclarePassive(
		c.config.Queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    c.retryExchange(),
			"x-dead-letter-routing-key": c.config.RoutingKey,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return state.Messages, nil
}

// IsConnected reports whether the client still holds a live channel.
func (c *Client) IsConnected() bool {
	select {
	case err := <-c.closeChan:
		if err != nil {
			c.isConnected = false
		}
	default:
	}
	return c.isConnected
}

// Close closes the channel and connection
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")
	c.isConnected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}
