package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/adapter/natsstan"
	"github.com/example/order-service/internal/adapter/rabbitmq"
	"github.com/example/order-service/internal/config"
	"github.com/example/order-service/internal/domain"
	"github.com/example/order-service/internal/task"
	"github.com/example/order-service/internal/usecase"
)

// fulfiller consumes new_order events and runs the fulfillment workers,
// decoupled in time from the API process.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	pool := task.NewPool(cfg.WorkerCount, cfg.TaskBacklog)
	pool.Register(domain.TaskProcessNewOrder,
		task.NewOrderHandler(task.SimulatedFulfiller{Delay: cfg.FulfillDelay}))

	// workers outlive the subscription so the backlog can drain on shutdown
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	pool.Start(workerCtx)

	subscriber, closeBroker, err := openSubscriber(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("broker connect")
	}
	defer closeBroker()

	dispatch := usecase.DispatchFulfillment{Tasks: pool}
	if err := subscriber.Subscribe(ctx, domain.QueueNewOrder, dispatch.Execute); err != nil {
		logrus.WithError(err).Fatal("subscribe")
	}
	logrus.WithFields(logrus.Fields{"queue": domain.QueueNewOrder, "workers": cfg.WorkerCount}).Info("fulfiller running")

	<-ctx.Done()

	pool.CloseIntake()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if !pool.Drain(drainCtx) {
		enq, proc, backlog := pool.Metrics()
		logrus.WithFields(logrus.Fields{"enqueued": enq, "processed": proc, "backlog": backlog}).
			Warn("shutdown before backlog drained")
	}
	stopWorkers()
	pool.Wait()
}

func openSubscriber(cfg config.Config) (domain.EventSubscriber, func(), error) {
	var (
		sub    domain.EventSubscriber
		closer io.Closer
		err    error
	)
	switch cfg.BrokerKind {
	case "rabbit":
		c, cerr := rabbitmq.Connect(cfg.RabbitURL)
		sub, closer, err = c, c, cerr
	case "stan":
		c, cerr := natsstan.Connect(cfg.StanClusterID, cfg.StanClientID, cfg.NatsURL)
		sub, closer, err = c, c, cerr
	default:
		return nil, nil, fmt.Errorf("unknown broker kind %q", cfg.BrokerKind)
	}
	if err != nil {
		return nil, nil, err
	}
	return sub, func() { _ = closer.Close() }, nil
}
