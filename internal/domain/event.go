package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QueueNewOrder is the broker queue carrying fulfillment events.
const QueueNewOrder = "new_order"

// TaskProcessNewOrder is the task executed by the fulfillment workers.
const TaskProcessNewOrder = "process_new_order"

// FulfillmentEvent notifies downstream processing that an order was created.
type FulfillmentEvent struct {
	ID uuid.UUID `json:"id"`
}

// envelope is the broker wire format: {"data":{"id":"<order-uuid>"}}.
type envelope struct {
	Data FulfillmentEvent `json:"data"`
}

// EncodeFulfillmentEvent renders the broker wire format for an event.
func EncodeFulfillmentEvent(ev FulfillmentEvent) ([]byte, error) {
	return json.Marshal(envelope{Data: ev})
}

// DecodeFulfillmentEvent parses the broker wire format.
func DecodeFulfillmentEvent(raw []byte) (FulfillmentEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return FulfillmentEvent{}, err
	}
	if env.Data.ID == uuid.Nil {
		return FulfillmentEvent{}, ErrValidation
	}
	return env.Data, nil
}
