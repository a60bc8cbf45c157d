package models

import "time"

// DriverLocation is the latest known position of the driver on an order.
// Only the most recent sample is kept, older ones are discarded.
type DriverLocation struct {
	OrderUUID   string    `json:"order_uuid"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Heading     *float64  `json:"heading,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// TrackingSnapshot initializes a tracking view before the first live event arrives.
type TrackingSnapshot struct {
	Order      Order           `json:"order"`
	Location   *DriverLocation `json:"location,omitempty"`
	ETA        *time.Time      `json:"eta,omitempty"`
	DistanceKm float64         `json:"distance_km"`
}
