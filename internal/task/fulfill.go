package task

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Fulfiller is the unit of work executed for each new order.
type Fulfiller interface {
	Fulfill(ctx context.Context, orderID string) error
}

// SimulatedFulfiller stands in for real fulfillment: it waits Delay and
// logs completion. Replace it to plug in actual work.
type SimulatedFulfiller struct {
	Delay time.Duration
}

func (f SimulatedFulfiller) Fulfill(ctx context.Context, orderID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.Delay):
	}
	logrus.WithField("order_id", orderID).Info("order processed")
	return nil
}

// NewOrderHandler adapts a Fulfiller into the process_new_order handler.
func NewOrderHandler(f Fulfiller) Handler {
	return func(ctx context.Context, orderID string) error {
		return f.Fulfill(ctx, orderID)
	}
}
