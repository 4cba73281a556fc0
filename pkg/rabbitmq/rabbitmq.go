package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
)

// DefaultExchange is the fanout exchange carrying view invalidations.
const DefaultExchange = "catalog.views"

// Invalidation is the message body sent when a view becomes stale.
type Invalidation struct {
	View   string    `json:"view"`
	Origin string    `json:"origin"`
	SentAt time.Time `json:"sent_at"`
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	origin   string
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string
}

// NewClient connects to RabbitMQ, opens a channel and declares the fanout
// exchange.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Close connection if channel creation fails
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"fanout",     // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	log.Printf("RabbitMQ client connected and exchange %s declared.", cfg.Exchange)

	return &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		origin:   uuid.New().String(),
	}, nil
}

// Close closes the RabbitMQ connection and channel.
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
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishInvalidation announces that view is stale.
func (c *Client) PublishInvalidation(ctx context.Context, view string) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(Invalidation{View: view, Origin: c.origin, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}

	err = c.channel.Publish(
		c.exchange, // exchange
		"",         // routing key: ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// ConsumeInvalidations binds a private queue to the exchange and calls handle
// for each invalidation sent by another instance. It returns once the consumer
// is registered; deliveries are processed in a goroutine until ctx is done or
// the channel closes.
func (c *Client) ConsumeInvalidations(ctx context.Context, handle func(ctx context.Context, view string) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := c.channel.QueueDeclare(
		"",    // name: server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue for consuming: %w", err)
	}
	if err := c.channel.QueueBind(queue.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue.Name, err)
	}

	msgs, err := c.channel.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf(" [*] Waiting for view invalidations on %s", c.exchange)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Printf("invalidation consumer stopped: delivery channel closed")
					return
				}
				c.dispatch(ctx, msg, handle)
			}
		}
	}()

	return nil
}

func (c *Client) dispatch(ctx context.Context, msg amqp.Delivery, handle func(context.Context, string) error) {
	var inv Invalidation
	if err := json.Unmarshal(msg.Body, &inv); err != nil {
		log.Printf("Dropping malformed invalidation %d: %v", msg.DeliveryTag, err)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Printf("Error nacking message %d: %v", msg.DeliveryTag, nackErr)
		}
		return
	}
	if inv.Origin == c.origin {
		// Already applied locally before publishing.
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Printf("Error acking own invalidation %d: %v", msg.DeliveryTag, ackErr)
		}
		return
	}
	if err := handle(ctx, inv.View); err != nil {
		// Requeue once; a redelivered message that fails again is dropped.
		requeue := !msg.Redelivered
		log.Printf("Error applying invalidation %d (requeue=%t): %v", msg.DeliveryTag, requeue, err)
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			log.Printf("Error nacking message %d: %v", msg.DeliveryTag, nackErr)
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Printf("Error acking message %d: %v", msg.DeliveryTag, ackErr)
	}
}
