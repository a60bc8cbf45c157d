package db

import (
	"errors"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusConflict means the conditional update matched no row because the
	// persisted status changed under us. The caller re-reads and re-validates.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type ListFilter struct {
	Status         models.OrderStatus
	RestaurantUUID string
	Page           int
	Limit          int
}

type Database interface {
	CreateOrder(order models.Order) error
	GetOrder(orderUUID string) (*models.Order, error)
	ListOrders(filter ListFilter) ([]*models.Order, error)

	UpdateOrderStatus(orderUUID string, from, to models.OrderStatus, change models.StatusChange) error
	AssignDriver(orderUUID string, driverUUID string) error
	UpdatePaymentStatus(orderUUID string, status models.PaymentStatus) error

	Close() error
}
