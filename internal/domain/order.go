package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus validates a raw status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusPaid, StatusShipped, StatusCancelled:
		return st, nil
	}
	return "", ErrValidation
}

// pending -> paid|cancelled, paid -> shipped|cancelled,
// shipped and cancelled are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped, StatusCancelled},
}

// CanTransitionTo reports whether next is a legal status after s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is the order aggregate. UserID never changes after creation.
type Order struct {
	ID         uuid.UUID      `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	UserID     uuid.UUID      `json:"user_id"`
	Items      map[string]any `json:"items"`
	TotalPrice float64        `json:"total_price"`
	Status     OrderStatus    `json:"status"`
}
