// Package natsstan implements the broker ports on NATS Streaming.
package natsstan

import (
	"context"
	"fmt"
	"time"

	stan "github.com/nats-io/stan.go"
	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/domain"
)

const queueGroup = "orders-workers"

// Conn is a NATS Streaming connection serving both publish and subscribe.
type Conn struct {
	sc stan.Conn
}

func Connect(clusterID, clientID, url string) (*Conn, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("orders-%d", time.Now().UnixNano())
	}
	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(url))
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	return &Conn{sc: sc}, nil
}

var (
	_ domain.EventPublisher  = (*Conn)(nil)
	_ domain.EventSubscriber = (*Conn)(nil)
)

// Publish delivers body to the queue subject. At-least-once is provided by
// the streaming server; no internal retry here.
func (c *Conn) Publish(_ context.Context, queue string, body []byte) error {
	if err := c.sc.Publish(queue, body); err != nil {
		return fmt.Errorf("stan publish: %w", err)
	}
	return nil
}

// Subscribe registers a durable queue subscription with manual acks.
// A handler error leaves the message unacked so the server redelivers.
func (c *Conn) Subscribe(ctx context.Context, queue string, handler func(ctx context.Context, raw []byte) error) error {
	sub, err := c.sc.QueueSubscribe(queue, queueGroup, func(m *stan.Msg) {
		hCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := handler(hCtx, m.Data); err != nil {
			logrus.WithError(err).WithField("queue", queue).Error("handler failed, message left unacked")
			return
		}
		if err := m.Ack(); err != nil {
			logrus.WithError(err).WithField("queue", queue).Error("ack failed")
		}
	}, stan.DurableName(queue+"-durable"), stan.SetManualAckMode(),
		stan.AckWait(10*time.Second), stan.DeliverAllAvailable())
	if err != nil {
		return fmt.Errorf("stan subscribe: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return nil
}

func (c *Conn) Close() error { return c.sc.Close() }
