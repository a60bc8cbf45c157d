package models

import "encoding/json"

type EventName string

const (
	EventOrderUpdated   EventName = "orderUpdated"
	EventDriverLocation EventName = "driverLocation"
	EventNewOrder       EventName = "newOrder"
)

// Event is one push-channel message. Payload is always a full snapshot of the
// entity, never a diff, so receivers reconcile by last write wins.
type Event struct {
	Name           EventName       `json:"event"`
	OrderUUID      string          `json:"order_uuid"`
	RestaurantUUID string          `json:"restaurant_uuid,omitempty"`
	Payload        json.RawMessage `json:"data"`
}

func OrderUpdatedEvent(order Order) Event {
	payload, _ := json.Marshal(order)
	return Event{
		Name:           EventOrderUpdated,
		OrderUUID:      order.UUID,
		RestaurantUUID: order.RestaurantUUID,
		Payload:        payload,
	}
}

func NewOrderEvent(order Order) Event {
	payload, _ := json.Marshal(order)
	return Event{
		Name:           EventNewOrder,
		OrderUUID:      order.UUID,
		RestaurantUUID: order.RestaurantUUID,
		Payload:        payload,
	}
}

func DriverLocationEvent(location DriverLocation) Event {
	payload, _ := json.Marshal(location)
	return Event{
		Name:      EventDriverLocation,
		OrderUUID: location.OrderUUID,
		Payload:   payload,
	}
}
