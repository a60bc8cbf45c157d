package models

// Command payloads accepted by the order facade. Each one is a closed type
// validated before dispatch.

type CreateOrderRequest struct {
	RestaurantUUID     string        `json:"restaurant_uuid"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	TotalAmount        float64       `json:"total_amount"`
	DeliveryAddress    string        `json:"delivery_address"`
	DeliveryDistanceKm float64       `json:"delivery_distance_km"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
	Notes  string      `json:"notes,omitempty"`
}

type AssignDriverRequest struct {
	DriverUUID string `json:"driver_uuid"`
}

type MarkPaymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}

type LocationUpdate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}
