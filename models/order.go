package models

import (
	"time"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// StatusChange is one append-only entry of an order's status history.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	ChangedBy string      `json:"changed_by,omitempty"`
	Notes     string      `json:"notes,omitempty"`
}

type Order struct {
	UUID               string         `json:"uuid"`
	CustomerUUID       string         `json:"customer_uuid"`
	RestaurantUUID     string         `json:"restaurant_uuid"`
	DriverUUID         *string        `json:"driver_uuid,omitempty"`
	Status             OrderStatus    `json:"status"`
	PaymentMethod      PaymentMethod  `json:"payment_method"`
	PaymentStatus      PaymentStatus  `json:"payment_status"`
	TotalAmount        float64        `json:"total_amount"`
	DeliveryAddress    string         `json:"delivery_address"`
	DeliveryDistanceKm float64        `json:"delivery_distance_km"`
	CreatedAt          time.Time      `json:"created_at"`
	StatusHistory      []StatusChange `json:"status_history,omitempty"`
}
