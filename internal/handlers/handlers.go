package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/config"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/auth"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/db"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/hub"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/orders"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/tracking"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Database    db.Database
	Config      *config.Config
	Logger      *zap.SugaredLogger
	Broadcaster hub.Broadcaster
	Tracker     *tracking.Store
	Estimator   *tracking.Estimator
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Errorw("error decoding create order request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RestaurantUUID == "" || req.DeliveryAddress == "" || req.TotalAmount <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "restaurant, delivery address and total amount are required")
		return
	}
	if req.PaymentMethod != models.PaymentCard && req.PaymentMethod != models.PaymentCash {
		writeError(w, http.StatusUnprocessableEntity, "unknown payment method")
		return
	}

	now := time.Now()
	order := models.Order{
		UUID:               uuid.New().String(),
		CustomerUUID:       r.Header.Get("UUID"),
		RestaurantUUID:     req.RestaurantUUID,
		Status:             models.OrderPending,
		PaymentMethod:      req.PaymentMethod,
		PaymentStatus:      models.PaymentPending,
		TotalAmount:        req.TotalAmount,
		DeliveryAddress:    req.DeliveryAddress,
		DeliveryDistanceKm: req.DeliveryDistanceKm,
		CreatedAt:          now,
		StatusHistory: []models.StatusChange{
			{Status: models.OrderPending, Timestamp: now, ChangedBy: r.Header.Get("UUID")},
		},
	}

	if err := h.Database.CreateOrder(order); err != nil {
		h.Logger.Errorw("error creating order", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.Broadcaster.Broadcast(models.NewOrderEvent(order))
	writeData(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := db.ListFilter{
		RestaurantUUID: r.URL.Query().Get("restaurant"),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if !orders.ValidStatus(models.OrderStatus(status)) {
			writeError(w, http.StatusUnprocessableEntity, "unknown status filter")
			return
		}
		filter.Status = models.OrderStatus(status)
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	// restaurant owners only ever see their own stream
	if auth.Role(r.Header.Get("Role")) == auth.RoleRestaurant {
		filter.RestaurantUUID = r.Header.Get("UUID")
	}

	list, err := h.Database.ListOrders(filter)
	if err != nil {
		h.Logger.Errorw("error listing orders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"orders": list,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	writeData(w, http.StatusOK, order)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Errorw("error decoding status update", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !orders.ValidStatus(req.Status) {
		writeError(w, http.StatusUnprocessableEntity, "unknown status")
		return
	}

	actor := r.Header.Get("UUID")

	// one retry on a lost race: re-read the persisted status and re-validate
	// the transition against it
	for attempt := 0; ; attempt++ {
		order, ok := h.loadOrder(w, r)
		if !ok {
			return
		}

		if auth.Role(r.Header.Get("Role")) == auth.RoleDriver {
			if order.DriverUUID == nil || *order.DriverUUID != actor {
				writeError(w, http.StatusForbidden, "order is not assigned to this driver")
				return
			}
		}

		updated, err := orders.Transition(*order, req.Status, actor, req.Notes)
		if err != nil {
			h.writeTransitionError(w, err)
			return
		}

		change := updated.StatusHistory[len(updated.StatusHistory)-1]
		err = h.Database.UpdateOrderStatus(order.UUID, order.Status, req.Status, change)
		if errors.Is(err, db.ErrStatusConflict) && attempt == 0 {
			continue
		}
		if errors.Is(err, db.ErrStatusConflict) {
			writeError(w, http.StatusConflict, "order status changed concurrently")
			return
		}
		if err != nil {
			h.Logger.Errorw("error updating order status", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if updated.Status.Terminal() {
			h.Tracker.Forget(updated.UUID)
		}

		h.Broadcaster.Broadcast(models.OrderUpdatedEvent(updated))
		writeData(w, http.StatusOK, updated)
		return
	}
}

func (h *Handler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	var req models.AssignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Errorw("error decoding driver assignment", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DriverUUID == "" {
		writeError(w, http.StatusUnprocessableEntity, "driver uuid is required")
		return
	}

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	if err := orders.ValidateAssignDriver(*order); err != nil {
		h.writeTransitionError(w, err)
		return
	}

	err := h.Database.AssignDriver(order.UUID, req.DriverUUID)
	if errors.Is(err, db.ErrStatusConflict) {
		writeError(w, http.StatusConflict, "order no longer accepts a driver")
		return
	}
	if err != nil {
		h.Logger.Errorw("error assigning driver", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	order.DriverUUID = &req.DriverUUID
	h.Broadcaster.Broadcast(models.OrderUpdatedEvent(*order))
	writeData(w, http.StatusOK, order)
}

func (h *Handler) MarkPayment(w http.ResponseWriter, r *http.Request) {
	var req models.MarkPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Errorw("error decoding payment update", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PaymentStatus != models.PaymentPaid {
		writeError(w, http.StatusUnprocessableEntity, "only marking a payment as paid is supported")
		return
	}

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	if err := orders.ValidateMarkCashReceived(*order); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.Database.UpdatePaymentStatus(order.UUID, models.PaymentPaid); err != nil {
		h.Logger.Errorw("error updating payment status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	order.PaymentStatus = models.PaymentPaid
	h.Broadcaster.Broadcast(models.OrderUpdatedEvent(*order))
	writeData(w, http.StatusOK, order)
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req models.LocationUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Errorw("error decoding location update", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		writeError(w, http.StatusUnprocessableEntity, "coordinates out of range")
		return
	}

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	if order.DriverUUID == nil || *order.DriverUUID != r.Header.Get("UUID") {
		writeError(w, http.StatusForbidden, "order is not assigned to this driver")
		return
	}
	if order.Status.Terminal() {
		writeError(w, http.StatusConflict, "order is finalized")
		return
	}

	location := h.Tracker.Update(order.UUID, req)
	h.Broadcaster.Broadcast(models.DriverLocationEvent(location))
	writeData(w, http.StatusOK, location)
}

func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	var location *models.DriverLocation
	if sample, found := h.Tracker.Latest(order.UUID); found {
		location = &sample
	}

	writeData(w, http.StatusOK, h.Estimator.Snapshot(*order, location))
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	orderUUID := chi.URLParam(r, "uuid")

	order, err := h.Database.GetOrder(orderUUID)
	if errors.Is(err, db.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return nil, false
	}
	if err != nil {
		h.Logger.Errorw("error loading order", "error", err, "order", orderUUID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	return order, true
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderFinalized):
		writeError(w, http.StatusConflict, "order is finalized")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid status transition")
	case errors.Is(err, orders.ErrDriverNotAllowed):
		writeError(w, http.StatusConflict, "driver cannot be assigned at this status")
	default:
		h.Logger.Errorw("unexpected transition error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
