package orders

import (
	"errors"
	"time"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderFinalized    = errors.New("order is finalized")
	ErrDriverNotAllowed  = errors.New("driver cannot be assigned at this status")
	ErrNotCashOrder      = errors.New("payment is not cash on delivery")
	ErrAlreadyPaid       = errors.New("order is already paid")
)

// next holds the single forward step of the delivery lifecycle. cancelled is
// reachable from any non-terminal status and is not listed here.
var next = map[models.OrderStatus]models.OrderStatus{
	models.OrderPending:        models.OrderConfirmed,
	models.OrderConfirmed:      models.OrderPreparing,
	models.OrderPreparing:      models.OrderReadyForPickup,
	models.OrderReadyForPickup: models.OrderOutForDelivery,
	models.OrderOutForDelivery: models.OrderDelivered,
}

var assignable = map[models.OrderStatus]bool{
	models.OrderConfirmed:      true,
	models.OrderPreparing:      true,
	models.OrderReadyForPickup: true,
}

// CanTransition reports whether target is reachable from current in one step.
func CanTransition(current, target models.OrderStatus) error {
	if current.Terminal() {
		return ErrOrderFinalized
	}
	if target == models.OrderCancelled {
		return nil
	}
	if next[current] != target {
		return ErrInvalidTransition
	}
	return nil
}

// Transition validates the move and appends a history entry stamped now.
// The returned order is a copy, the input is left untouched.
func Transition(order models.Order, target models.OrderStatus, actor string, notes string) (models.Order, error) {
	if err := CanTransition(order.Status, target); err != nil {
		return order, err
	}

	order.Status = target
	order.StatusHistory = append(order.StatusHistory[:len(order.StatusHistory):len(order.StatusHistory)], models.StatusChange{
		Status:    target,
		Timestamp: time.Now(),
		ChangedBy: actor,
		Notes:     notes,
	})

	return order, nil
}

// ValidateAssignDriver checks that the order currently accepts a driver.
// Assignment overwrites any prior driver and never changes the status.
func ValidateAssignDriver(order models.Order) error {
	if order.Status.Terminal() {
		return ErrOrderFinalized
	}
	if !assignable[order.Status] {
		return ErrDriverNotAllowed
	}
	return nil
}

// ValidateMarkCashReceived checks the cash marking rules: cash orders only,
// and only while the payment is still outstanding.
func ValidateMarkCashReceived(order models.Order) error {
	if order.PaymentMethod != models.PaymentCash {
		return ErrNotCashOrder
	}
	if order.PaymentStatus == models.PaymentPaid {
		return ErrAlreadyPaid
	}
	return nil
}

// ValidStatus reports whether s is one of the known lifecycle statuses.
func ValidStatus(s models.OrderStatus) bool {
	if s == models.OrderCancelled || s == models.OrderDelivered {
		return true
	}
	_, ok := next[s]
	return ok
}
