package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/auth"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/db"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/handlers"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/hub"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/tracking"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/ws"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "supersecretkey"

type testEnv struct {
	mock   sqlmock.Sqlmock
	hub    *hub.Hub
	router http.Handler
	h      handlers.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockdb.Close() })

	eventHub := hub.NewHub(zap.NewNop().Sugar())

	h := handlers.Handler{
		Database:    &db.Manager{Db: mockdb},
		Logger:      zap.NewNop().Sugar(),
		Broadcaster: eventHub,
		Tracker:     tracking.NewStore(),
		Estimator: &tracking.Estimator{
			Confirm:  2 * time.Minute,
			Prepare:  15 * time.Minute,
			Pickup:   5 * time.Minute,
			Delivery: 25 * time.Minute,
		},
	}

	wsHandler := &ws.Handler{Hub: eventHub, Logger: h.Logger, Secret: testSecret}

	return &testEnv{
		mock:   mock,
		hub:    eventHub,
		router: initRouter(h, wsHandler, testSecret),
		h:      h,
	}
}

func bearer(t *testing.T, role auth.Role, actorUUID string) string {
	t.Helper()
	token, err := auth.BuildJWT(actorUUID, role, testSecret)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *testEnv) request(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

var orderColumns = []string{
	"uuid", "customer_uuid", "restaurant_uuid", "driver_uuid", "status",
	"payment_method", "payment_status", "total_amount", "delivery_address",
	"delivery_distance_km", "created_at",
}

func (e *testEnv) expectGetOrder(order models.Order) {
	driver := interface{}(nil)
	if order.DriverUUID != nil {
		driver = *order.DriverUUID
	}

	e.mock.ExpectQuery(`SELECT uuid, customer_uuid, restaurant_uuid, driver_uuid, status, payment_method, payment_status, total_amount, delivery_address, delivery_distance_km, created_at FROM orders WHERE uuid = \$1`).
		WithArgs(order.UUID).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
			order.UUID, order.CustomerUUID, order.RestaurantUUID, driver, order.Status,
			order.PaymentMethod, order.PaymentStatus, order.TotalAmount, order.DeliveryAddress,
			order.DeliveryDistanceKm, order.CreatedAt))

	historyRows := sqlmock.NewRows([]string{"status", "changed_by", "notes", "changed_at"})
	for _, change := range order.StatusHistory {
		historyRows.AddRow(change.Status, change.ChangedBy, change.Notes, change.Timestamp)
	}
	e.mock.ExpectQuery(`SELECT status, changed_by, notes, changed_at FROM order_status_history WHERE order_uuid = \$1`).
		WithArgs(order.UUID).
		WillReturnRows(historyRows)
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) models.Order {
	t.Helper()
	var envelope struct {
		Status string       `json:"status"`
		Data   models.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "success", envelope.Status)
	return envelope.Data
}

func pendingOrder() models.Order {
	return models.Order{
		UUID:            "11111111-1111-1111-1111-111111111111",
		CustomerUUID:    "customer-1",
		RestaurantUUID:  "rest-1",
		Status:          models.OrderPending,
		PaymentMethod:   models.PaymentCash,
		PaymentStatus:   models.PaymentPending,
		TotalAmount:     420.50,
		DeliveryAddress: "Bole Road 12",
		CreatedAt:       time.Now().Add(-time.Minute),
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := e.request(t, "GET", "/api/orders/any", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleForbidden(t *testing.T) {
	e := newTestEnv(t)

	rec := e.request(t, "GET", "/api/orders", bearer(t, auth.RoleCustomer, "customer-1"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.request(t, "PATCH", "/api/orders/x/payment", bearer(t, auth.RoleDriver, "driver-1"),
		models.MarkPaymentRequest{PaymentStatus: models.PaymentPaid})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()

		sub := e.hub.Subscribe(hub.OrderRoom(order.UUID))
		defer sub.Close()

		e.expectGetOrder(order)
		e.mock.ExpectBegin()
		e.mock.ExpectExec(`UPDATE orders SET status = \$1 WHERE uuid = \$2 AND status = \$3`).
			WithArgs("confirmed", order.UUID, "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		e.mock.ExpectExec(`INSERT INTO order_status_history`).
			WithArgs(order.UUID, "confirmed", "rest-1", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		e.mock.ExpectCommit()

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/status",
			bearer(t, auth.RoleRestaurant, "rest-1"),
			models.UpdateStatusRequest{Status: models.OrderConfirmed})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeOrder(t, rec)
		assert.Equal(t, models.OrderConfirmed, updated.Status)
		assert.Len(t, updated.StatusHistory, 1)

		select {
		case event := <-sub.C():
			assert.Equal(t, models.EventOrderUpdated, event.Name)
			assert.Equal(t, order.UUID, event.OrderUUID)
		case <-time.After(time.Second):
			t.Fatal("expected orderUpdated broadcast")
		}

		assert.NoError(t, e.mock.ExpectationsWereMet())
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()

		e.expectGetOrder(order)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/status",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.UpdateStatusRequest{Status: models.OrderDelivered})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid status transition")
		assert.NoError(t, e.mock.ExpectationsWereMet())
	})

	t.Run("Finalized", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.Status = models.OrderDelivered

		e.expectGetOrder(order)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/status",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.UpdateStatusRequest{Status: models.OrderCancelled})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "finalized")
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.request(t, "PATCH", "/api/orders/x/status",
			bearer(t, auth.RoleAdmin, "admin-1"),
			map[string]string{"status": "teleported"})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("LostRaceRevalidatesAgainstNewStatus", func(t *testing.T) {
		// two actors race to confirm: the loser's CAS matches no row, the
		// handler re-reads and finds the transition no longer valid
		e := newTestEnv(t)
		order := pendingOrder()

		e.expectGetOrder(order)
		e.mock.ExpectBegin()
		e.mock.ExpectExec(`UPDATE orders SET status = \$1 WHERE uuid = \$2 AND status = \$3`).
			WithArgs("confirmed", order.UUID, "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))
		e.mock.ExpectRollback()

		confirmed := order
		confirmed.Status = models.OrderConfirmed
		e.expectGetOrder(confirmed)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/status",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.UpdateStatusRequest{Status: models.OrderConfirmed})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid status transition")
		assert.NoError(t, e.mock.ExpectationsWereMet())
	})

	t.Run("DriverMustBeAssigned", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.Status = models.OrderReadyForPickup

		e.expectGetOrder(order)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/status",
			bearer(t, auth.RoleDriver, "driver-1"),
			models.UpdateStatusRequest{Status: models.OrderOutForDelivery})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("AssignedDriverMayAdvance", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.Status = models.OrderReadyForPickup
		driverUUID := "driver-1"
		order.DriverUUID = &driverUUID

		e.expectGetOrder(order)
		e.mock.ExpectBegin()
		e.mock.ExpectExec(`UPDATE orders SET status = \$1 WHERE uuid = \$2 AND status = \$3`).
			WithArgs("out_for_delivery", order.UUID, "ready_for_pickup").
			WillReturnResult(sqlmock.NewResult(0, 1))
		e.mock.ExpectExec(`INSERT INTO order_status_history`).
			WithArgs(order.UUID, "out_for_delivery", "driver-1", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		e.mock.ExpectCommit()

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/status",
			bearer(t, auth.RoleDriver, "driver-1"),
			models.UpdateStatusRequest{Status: models.OrderOutForDelivery})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestAssignDriver(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.Status = models.OrderPreparing

		e.expectGetOrder(order)
		e.mock.ExpectExec(`UPDATE orders SET driver_uuid = \$1 WHERE uuid = \$2 AND status IN`).
			WithArgs("driver-1", order.UUID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/driver",
			bearer(t, auth.RoleRestaurant, "rest-1"),
			models.AssignDriverRequest{DriverUUID: "driver-1"})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeOrder(t, rec)
		require.NotNil(t, updated.DriverUUID)
		assert.Equal(t, "driver-1", *updated.DriverUUID)
		assert.Equal(t, models.OrderPreparing, updated.Status, "assignment must not change the status")
	})

	t.Run("TooEarly", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()

		e.expectGetOrder(order)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/driver",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.AssignDriverRequest{DriverUUID: "driver-1"})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.NoError(t, e.mock.ExpectationsWereMet())
	})

	t.Run("MissingDriver", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.request(t, "PATCH", "/api/orders/x/driver",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.AssignDriverRequest{})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestMarkPayment(t *testing.T) {
	t.Run("CashReceived", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.Status = models.OrderOutForDelivery

		e.expectGetOrder(order)
		e.mock.ExpectExec(`UPDATE orders SET payment_status = \$1 WHERE uuid = \$2`).
			WithArgs("paid", order.UUID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/payment",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.MarkPaymentRequest{PaymentStatus: models.PaymentPaid})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeOrder(t, rec)
		assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
		assert.Equal(t, models.OrderOutForDelivery, updated.Status, "payment must not affect delivery status")
	})

	t.Run("CardOrderRejected", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.PaymentMethod = models.PaymentCard

		e.expectGetOrder(order)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/payment",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.MarkPaymentRequest{PaymentStatus: models.PaymentPaid})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.NoError(t, e.mock.ExpectationsWereMet())
	})

	t.Run("AlreadyPaidRejected", func(t *testing.T) {
		e := newTestEnv(t)
		order := pendingOrder()
		order.PaymentStatus = models.PaymentPaid

		e.expectGetOrder(order)

		rec := e.request(t, "PATCH", "/api/orders/"+order.UUID+"/payment",
			bearer(t, auth.RoleAdmin, "admin-1"),
			models.MarkPaymentRequest{PaymentStatus: models.PaymentPaid})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestCreateOrder(t *testing.T) {
	e := newTestEnv(t)

	sub := e.hub.Subscribe(hub.RestaurantRoom("rest-1"))
	defer sub.Close()

	e.mock.ExpectBegin()
	e.mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), "customer-1", "rest-1", "pending", "cash", "pending",
			420.5, "Bole Road 12", 4.2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	e.mock.ExpectExec(`INSERT INTO order_status_history`).
		WithArgs(sqlmock.AnyArg(), "pending", "customer-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	e.mock.ExpectCommit()

	rec := e.request(t, "POST", "/api/orders",
		bearer(t, auth.RoleCustomer, "customer-1"),
		models.CreateOrderRequest{
			RestaurantUUID:     "rest-1",
			PaymentMethod:      models.PaymentCash,
			TotalAmount:        420.5,
			DeliveryAddress:    "Bole Road 12",
			DeliveryDistanceKm: 4.2,
		})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeOrder(t, rec)
	assert.Equal(t, models.OrderPending, created.Status)
	assert.Len(t, created.StatusHistory, 1)

	select {
	case event := <-sub.C():
		assert.Equal(t, models.EventNewOrder, event.Name)
		assert.Equal(t, "rest-1", event.RestaurantUUID)
	case <-time.After(time.Second):
		t.Fatal("expected newOrder broadcast on the restaurant room")
	}

	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestListOrders(t *testing.T) {
	e := newTestEnv(t)
	order := pendingOrder()

	e.mock.ExpectQuery(`SELECT uuid, customer_uuid, restaurant_uuid, driver_uuid, status, payment_method, payment_status, total_amount, delivery_address, delivery_distance_km, created_at FROM orders WHERE 1=1 AND status = \$1 AND restaurant_uuid = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("pending", "rest-1", 10, 10).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
			order.UUID, order.CustomerUUID, order.RestaurantUUID, nil, order.Status,
			order.PaymentMethod, order.PaymentStatus, order.TotalAmount, order.DeliveryAddress,
			order.DeliveryDistanceKm, order.CreatedAt))

	rec := e.request(t, "GET", "/api/orders?status=pending&restaurant=rest-1&page=2&limit=10",
		bearer(t, auth.RoleRestaurant, "rest-1"), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), order.UUID)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestUpdateLocationAndTracking(t *testing.T) {
	e := newTestEnv(t)
	order := pendingOrder()
	order.Status = models.OrderOutForDelivery
	order.DeliveryDistanceKm = 4.2
	driverUUID := "driver-1"
	order.DriverUUID = &driverUUID

	sub := e.hub.Subscribe(hub.OrderRoom(order.UUID))
	defer sub.Close()

	e.expectGetOrder(order)

	rec := e.request(t, "POST", "/api/orders/"+order.UUID+"/location",
		bearer(t, auth.RoleDriver, "driver-1"),
		models.LocationUpdate{Latitude: 9.0054, Longitude: 38.7636})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case event := <-sub.C():
		assert.Equal(t, models.EventDriverLocation, event.Name)
		var location models.DriverLocation
		require.NoError(t, json.Unmarshal(event.Payload, &location))
		assert.Equal(t, 9.0054, location.Latitude)
	case <-time.After(time.Second):
		t.Fatal("expected driverLocation broadcast")
	}

	// the snapshot endpoint serves the stored sample plus a time based ETA
	e.expectGetOrder(order)

	rec = e.request(t, "GET", "/api/orders/"+order.UUID+"/tracking",
		bearer(t, auth.RoleCustomer, "customer-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Status string                  `json:"status"`
		Data   models.TrackingSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Location)
	assert.Equal(t, 38.7636, envelope.Data.Location.Longitude)
	assert.Equal(t, 4.2, envelope.Data.DistanceKm)
	assert.NotNil(t, envelope.Data.ETA)
}

func TestUpdateLocationWrongDriver(t *testing.T) {
	e := newTestEnv(t)
	order := pendingOrder()
	order.Status = models.OrderOutForDelivery
	driverUUID := "driver-1"
	order.DriverUUID = &driverUUID

	e.expectGetOrder(order)

	rec := e.request(t, "POST", "/api/orders/"+order.UUID+"/location",
		bearer(t, auth.RoleDriver, "driver-2"),
		models.LocationUpdate{Latitude: 9.0, Longitude: 38.7})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	e := newTestEnv(t)

	e.mock.ExpectQuery(`SELECT uuid, customer_uuid, restaurant_uuid, driver_uuid, status, payment_method, payment_status, total_amount, delivery_address, delivery_distance_km, created_at FROM orders WHERE uuid = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rec := e.request(t, "GET", "/api/orders/missing",
		bearer(t, auth.RoleCustomer, "customer-1"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
