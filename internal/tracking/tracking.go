package tracking

import (
	"sync"
	"time"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/config"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
)

// Store keeps the most recent driver location per in-flight order. Older
// samples are discarded, nothing is persisted past the delivery window.
type Store struct {
	mu      sync.RWMutex
	samples map[string]models.DriverLocation
}

func NewStore() *Store {
	return &Store{
		samples: make(map[string]models.DriverLocation),
	}
}

func (s *Store) Update(orderUUID string, update models.LocationUpdate) models.DriverLocation {
	location := models.DriverLocation{
		OrderUUID:   orderUUID,
		Latitude:    update.Latitude,
		Longitude:   update.Longitude,
		Heading:     update.Heading,
		Speed:       update.Speed,
		LastUpdated: time.Now(),
	}

	s.mu.Lock()
	s.samples[orderUUID] = location
	s.mu.Unlock()

	return location
}

func (s *Store) Latest(orderUUID string) (models.DriverLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, ok := s.samples[orderUUID]
	return location, ok
}

// Forget drops the sample once the order reaches a terminal status.
func (s *Store) Forget(orderUUID string) {
	s.mu.Lock()
	delete(s.samples, orderUUID)
	s.mu.Unlock()
}

// Estimator derives a delivery ETA from status timestamps and configured
// per-stage durations. Driver coordinates are passed through untouched, no
// distance math happens here.
type Estimator struct {
	Confirm  time.Duration
	Prepare  time.Duration
	Pickup   time.Duration
	Delivery time.Duration
}

func NewEstimator(cfg *config.Config) *Estimator {
	return &Estimator{
		Confirm:  cfg.ConfirmDuration,
		Prepare:  cfg.PrepareDuration,
		Pickup:   cfg.PickupDuration,
		Delivery: cfg.DeliveryDuration,
	}
}

// ETA returns nil for terminal orders. For everything else it is the time of
// the last status change plus the durations of the stages still ahead.
func (e *Estimator) ETA(order models.Order) *time.Time {
	if order.Status.Terminal() {
		return nil
	}

	var remaining time.Duration
	switch order.Status {
	case models.OrderPending:
		remaining = e.Confirm + e.Prepare + e.Pickup + e.Delivery
	case models.OrderConfirmed:
		remaining = e.Prepare + e.Pickup + e.Delivery
	case models.OrderPreparing:
		remaining = e.Pickup + e.Delivery
	case models.OrderReadyForPickup:
		remaining = e.Pickup + e.Delivery
	case models.OrderOutForDelivery:
		remaining = e.Delivery
	}

	since := order.CreatedAt
	if n := len(order.StatusHistory); n > 0 {
		since = order.StatusHistory[n-1].Timestamp
	}

	eta := since.Add(remaining)
	return &eta
}

// Snapshot assembles the read-only view a tracking screen renders before its
// first live event arrives.
func (e *Estimator) Snapshot(order models.Order, location *models.DriverLocation) models.TrackingSnapshot {
	return models.TrackingSnapshot{
		Order:      order,
		Location:   location,
		ETA:        e.ETA(order),
		DistanceKm: order.DeliveryDistanceKm,
	}
}
