package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ErrReject marks a message that can never be processed. Handlers wrap it
// so the delivery is dropped instead of requeued.
var ErrReject = errors.New("message rejected")

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string // topic exchange events are published to
	Queue    string // durable queue commands are consumed from

	// DeadLetterExchange receives deliveries dropped from Queue. A durable
	// "<Queue>.dead" queue is bound to it. Empty disables dead-lettering.
	DeadLetterExchange string
}

// DeadLetterQueue names the queue holding commands dropped from queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}

// NewClient creates a new RabbitMQ client.
// It connects to RabbitMQ, opens a channel and declares the exchange and queue.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	var queueArgs amqp.Table
	if cfg.DeadLetterExchange != "" {
		if err := declareDeadLetter(ch, cfg.DeadLetterExchange, DeadLetterQueue(cfg.Queue)); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
		queueArgs = amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		queueArgs, // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	log.Info("rabbitmq client connected",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
	)

	return &Client{
		conn:    conn,
		channel: ch,
		log:     log,
	}, nil
}

func declareDeadLetter(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue %s: %w", queue, err)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a persistent JSON message to exchange with the given routing key.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.channel.Publish(
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.log.Debug("message published", zap.String("exchange", exchange), zap.String("routing_key", routingKey))
	return nil
}

// Handler processes one delivery. ctx is cancelled when consumption stops.
type Handler func(ctx context.Context, msg amqp.Delivery) error

// Consume hands every delivery on queue to handler until ctx is cancelled.
// A delivery is acked when handler returns nil. Failed deliveries are
// requeued once; a second failure, or an error wrapping ErrReject, drops it
// to the dead-letter exchange when one is configured.
//
// When ctx is cancelled the consumer is cancelled on the broker and
// deliveries not yet handled go back on the queue. The returned channel is
// closed after the last handler call has returned.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) (<-chan struct{}, error) {
	if c.channel == nil {
		return nil, fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	tag := queue + "-" + uuid.NewString()
	msgs, err := c.channel.Consume(
		queue, // queue
		tag,   // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("waiting for messages", zap.String("queue", queue), zap.String("consumer", tag))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.serve(ctx, queue, msgs, handler)
	}()
	go func() {
		select {
		case <-ctx.Done():
			if err := c.channel.Cancel(tag, false); err != nil {
				c.log.Warn("failed to cancel consumer", zap.String("consumer", tag), zap.Error(err))
			}
		case <-done:
		}
	}()

	return done, nil
}

// serve runs handler over msgs until the delivery channel closes.
func (c *Client) serve(ctx context.Context, queue string, msgs <-chan amqp.Delivery, handler Handler) {
	for msg := range msgs {
		if ctx.Err() != nil {
			c.release(msg)
			continue
		}
		c.settle(ctx, msg, handler(ctx, msg))
	}
	c.log.Info("delivery channel closed", zap.String("queue", queue))
}

// release returns an unhandled delivery to the queue.
func (c *Client) release(msg amqp.Delivery) {
	if err := msg.Nack(false, true); err != nil {
		c.log.Error("failed to release message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
	}
}

func (c *Client) settle(ctx context.Context, msg amqp.Delivery, err error) {
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.log.Error("failed to ack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
		}
		return
	}

	requeue := Requeue(err, msg.Redelivered)
	if ctx.Err() != nil && !errors.Is(err, ErrReject) {
		// Interrupted by shutdown.
		requeue = true
	}
	c.log.Warn("message processing failed",
		zap.Uint64("delivery_tag", msg.DeliveryTag),
		zap.Bool("requeue", requeue),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false, requeue); nackErr != nil {
		c.log.Error("failed to nack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
	}
}

// Requeue reports whether a delivery that failed with err should go back
// on the queue.
func Requeue(err error, redelivered bool) bool {
	return !redelivered && !errors.Is(err, ErrReject)
}
