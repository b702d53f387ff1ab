// Package rabbitmq implements the broker ports on RabbitMQ.
package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/domain"
)

// Conn wraps an AMQP connection and channel.
type Conn struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Connect(url string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &Conn{conn: conn, channel: ch}, nil
}

var (
	_ domain.EventPublisher  = (*Conn)(nil)
	_ domain.EventSubscriber = (*Conn)(nil)
)

func (c *Conn) declare(queue string) error {
	_, err := c.channel.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// Publish delivers body to the durable queue, persisted to disk.
// Blocks only until the broker accepts the publish.
func (c *Conn) Publish(ctx context.Context, queue string, body []byte) error {
	if err := c.declare(queue); err != nil {
		return err
	}
	err := c.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Subscribe consumes the queue with manual acks. A handler error nacks the
// delivery back onto the queue for redelivery.
func (c *Conn) Subscribe(ctx context.Context, queue string, handler func(ctx context.Context, raw []byte) error) error {
	if err := c.declare(queue); err != nil {
		return err
	}
	deliveries, err := c.channel.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handler(ctx, d.Body); err != nil {
					logrus.WithError(err).WithField("queue", queue).Error("handler failed, requeueing")
					_ = d.Nack(false, true)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

func (c *Conn) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
