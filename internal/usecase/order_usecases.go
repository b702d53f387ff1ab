// Package usecase orchestrates the order lifecycle over the domain ports.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/domain"
)

// DefaultCacheTTL bounds cached reads unless a call site overrides it.
const DefaultCacheTTL = 300 * time.Second

// OrderCacheKey is the key a cacheable read and its invalidating write share.
// It hashes the operation identity plus the sorted argument set, excluding
// volatile fields, and is prefixed with the authorized subject so a hit
// implies a previously authorized (order, user) pair.
func OrderCacheKey(orderID, userID uuid.UUID) string {
	args := []string{"order_id=" + orderID.String(), "user_id=" + userID.String()}
	sort.Strings(args)
	sum := sha256.Sum256([]byte("orders.get:" + strings.Join(args, ":")))
	return "orders:" + userID.String() + ":" + hex.EncodeToString(sum[:])
}

// CreateOrder persists a new pending order and hands it to fulfillment.
type CreateOrder struct {
	Repo      domain.OrderRepository
	Publisher domain.EventPublisher
}

// Execute commits the order first, then publishes the fulfillment event.
// A publish failure is logged, never propagated: the order is already
// committed and the record must not appear to have failed.
func (uc CreateOrder) Execute(ctx context.Context, userID uuid.UUID, items map[string]any, totalPrice float64) (domain.Order, error) {
	if totalPrice < 0 {
		return domain.Order{}, domain.ErrValidation
	}
	if items == nil {
		items = map[string]any{}
	}

	order, err := uc.Repo.Add(ctx, domain.Order{
		UserID:     userID,
		Items:      items,
		TotalPrice: totalPrice,
		Status:     domain.StatusPending,
	})
	if err != nil {
		return domain.Order{}, err
	}

	body, err := domain.EncodeFulfillmentEvent(domain.FulfillmentEvent{ID: order.ID})
	if err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("encode fulfillment event")
		return order, nil
	}
	if err := uc.Publisher.Publish(ctx, domain.QueueNewOrder, body); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("fulfillment publish failed")
	}
	return order, nil
}

// GetOrder serves an order through the read-through cache.
type GetOrder struct {
	Repo  domain.OrderRepository
	Cache domain.Cache
	TTL   time.Duration
}

func (uc GetOrder) Execute(ctx context.Context, orderID, userID uuid.UUID) (domain.Order, error) {
	key := OrderCacheKey(orderID, userID)

	raw, hit, err := uc.Cache.Get(ctx, key)
	if err != nil {
		// degrade to a live read
		logrus.WithError(err).WithField("key", key).Warn("cache get failed")
	} else if hit {
		var order domain.Order
		if err := json.Unmarshal(raw, &order); err == nil {
			return order, nil
		}
		logrus.WithField("key", key).Warn("corrupt cache entry, falling back to repository")
	}

	order, err := uc.Repo.GetBy(ctx, "id", orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrForbidden
	}

	// only the post-authorization payload is cached
	if raw, err := json.Marshal(order); err == nil {
		if err := uc.Cache.Set(ctx, key, raw, uc.ttl()); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("cache set failed")
		}
	}
	return order, nil
}

func (uc GetOrder) ttl() time.Duration {
	if uc.TTL > 0 {
		return uc.TTL
	}
	return DefaultCacheTTL
}

// UpdateStatus transitions an order and keeps the cache consistent.
type UpdateStatus struct {
	Repo  domain.OrderRepository
	Cache domain.Cache
}

// Execute checks existence and ownership against the live store, enforces
// the transition table, applies the partial update, then invalidates the
// entry a matching read would hit.
func (uc UpdateStatus) Execute(ctx context.Context, orderID, userID uuid.UUID, status domain.OrderStatus) (domain.Order, error) {
	order, err := uc.Repo.GetBy(ctx, "id", orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrForbidden
	}
	if !order.Status.CanTransitionTo(status) {
		return domain.Order{}, domain.ErrConflict
	}

	updated, err := uc.Repo.Update(ctx, orderID, map[string]any{"status": string(status)})
	if err != nil {
		return domain.Order{}, err
	}

	// a stale entry here would be observable on the next read
	if err := uc.Cache.Delete(ctx, OrderCacheKey(orderID, userID)); err != nil {
		return domain.Order{}, fmt.Errorf("invalidate cache: %w", err)
	}
	return updated, nil
}

// ListOrders returns every order of a user, oldest first. No pagination.
type ListOrders struct {
	Repo domain.OrderRepository
}

func (uc ListOrders) Execute(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return uc.Repo.ListByUser(ctx, userID)
}

// DispatchFulfillment forwards a consumed broker message to the task queue.
// An error from Execute leaves the message unacked at the broker.
type DispatchFulfillment struct {
	Tasks domain.TaskDispatcher
}

func (uc DispatchFulfillment) Execute(ctx context.Context, raw []byte) error {
	ev, err := domain.DecodeFulfillmentEvent(raw)
	if err != nil {
		return fmt.Errorf("decode fulfillment event: %w", err)
	}
	if err := uc.Tasks.Dispatch(ctx, domain.TaskProcessNewOrder, ev.ID.String()); err != nil {
		return fmt.Errorf("dispatch %s: %w", domain.TaskProcessNewOrder, err)
	}
	return nil
}
