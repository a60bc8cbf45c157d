package hub

import (
	"sync"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
	"go.uber.org/zap"
)

const eventBuffer = 16

// Broadcaster is the write side of the live channel. The REST facade only ever
// broadcasts, it never reads.
type Broadcaster interface {
	Broadcast(event models.Event)
}

func OrderRoom(orderUUID string) string {
	return "order:" + orderUUID
}

func RestaurantRoom(restaurantUUID string) string {
	return "restaurant:" + restaurantUUID
}

// Hub fans events out to subscriptions by room. It keeps no state for a
// subscription once it is closed, so a reconnecting client has to re-join its
// rooms and re-fetch current state over REST.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	logger *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscription is one client's membership in a set of rooms. Events arrive on
// C until Close is called.
type Subscription struct {
	hub    *Hub
	events chan models.Event
	rooms  map[string]struct{}
	once   sync.Once
}

func (s *Subscription) C() <-chan models.Event {
	return s.events
}

// Close leaves every room and closes the event channel. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		for room := range s.rooms {
			s.hub.remove(room, s)
		}
		s.hub.mu.Unlock()
		close(s.events)
	})
}

func (h *Hub) Subscribe(rooms ...string) *Subscription {
	s := &Subscription{
		hub:    h,
		events: make(chan models.Event, eventBuffer),
		rooms:  make(map[string]struct{}),
	}

	h.mu.Lock()
	for _, room := range rooms {
		h.add(room, s)
	}
	h.mu.Unlock()

	return s
}

func (h *Hub) Join(s *Subscription, room string) {
	h.mu.Lock()
	h.add(room, s)
	h.mu.Unlock()
}

func (h *Hub) Leave(s *Subscription, room string) {
	h.mu.Lock()
	h.remove(room, s)
	h.mu.Unlock()
}

// Broadcast delivers the event to every subscription in the rooms it belongs
// to: the order room always, the restaurant room for order-level events.
// Location samples stay scoped to the order's own tracking room.
func (h *Hub) Broadcast(event models.Event) {
	rooms := make([]string, 0, 2)
	switch event.Name {
	case models.EventDriverLocation:
		rooms = append(rooms, OrderRoom(event.OrderUUID))
	case models.EventNewOrder:
		rooms = append(rooms, RestaurantRoom(event.RestaurantUUID))
	default:
		rooms = append(rooms, OrderRoom(event.OrderUUID))
		if event.RestaurantUUID != "" {
			rooms = append(rooms, RestaurantRoom(event.RestaurantUUID))
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := make(map[*Subscription]struct{})
	for _, room := range rooms {
		for s := range h.rooms[room] {
			if _, ok := delivered[s]; ok {
				continue
			}
			delivered[s] = struct{}{}

			select {
			case s.events <- event:
			default:
				// slow subscriber, drop rather than block the writer
				h.logger.Warnw("dropping event for slow subscriber", "event", event.Name, "room", room)
			}
		}
	}
}

// add and remove require h.mu to be held.
func (h *Hub) add(room string, s *Subscription) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscription]struct{})
	}
	h.rooms[room][s] = struct{}{}
	s.rooms[room] = struct{}{}
}

func (h *Hub) remove(room string, s *Subscription) {
	delete(s.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}
