// publisher injects a fulfillment event for an existing order id, useful
// for replaying a lost event against the fulfiller.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/adapter/natsstan"
	"github.com/example/order-service/internal/adapter/rabbitmq"
	"github.com/example/order-service/internal/config"
	"github.com/example/order-service/internal/domain"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: publisher <order-uuid>")
		os.Exit(2)
	}
	orderID, err := uuid.Parse(os.Args[1])
	if err != nil {
		logrus.WithError(err).Fatal("parse order id")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	var pub domain.EventPublisher
	switch cfg.BrokerKind {
	case "rabbit":
		c, err := rabbitmq.Connect(cfg.RabbitURL)
		if err != nil {
			logrus.WithError(err).Fatal("broker connect")
		}
		defer c.Close()
		pub = c
	case "stan":
		c, err := natsstan.Connect(cfg.StanClusterID, cfg.StanClientID, cfg.NatsURL)
		if err != nil {
			logrus.WithError(err).Fatal("broker connect")
		}
		defer c.Close()
		pub = c
	default:
		logrus.WithField("broker", cfg.BrokerKind).Fatal("unknown broker kind")
	}

	body, err := domain.EncodeFulfillmentEvent(domain.FulfillmentEvent{ID: orderID})
	if err != nil {
		logrus.WithError(err).Fatal("encode event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, domain.QueueNewOrder, body); err != nil {
		logrus.WithError(err).Fatal("publish")
	}
	logrus.WithField("order_id", orderID).Info("fulfillment event published")
}
