package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderRepository is the persistence port for orders.
type OrderRepository interface {
	Add(ctx context.Context, order Order) (Order, error)
	// GetBy looks an order up by a whitelisted column.
	GetBy(ctx context.Context, field string, value any) (Order, error)
	// Update applies only the supplied fields and returns the post-update row.
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
}

// UserRepository is the persistence port for accounts.
type UserRepository interface {
	Add(ctx context.Context, email, password string) (User, error)
	GetBy(ctx context.Context, field string, value any) (User, error)
}

// Cache is a TTL-bound key-value store for serialized responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher delivers an event body to a named broker queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// EventSubscriber is a long-lived broker subscription.
// The adapter acknowledges a message only after handler returns nil;
// a handler error leaves it unacked for redelivery.
type EventSubscriber interface {
	Subscribe(ctx context.Context, queue string, handler func(ctx context.Context, raw []byte) error) error
}

// TaskDispatcher enqueues a named unit of work onto the task queue.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task, arg string) error
}
