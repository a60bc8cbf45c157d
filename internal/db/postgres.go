package db

import (
	"database/sql"
	"fmt"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/config"
	_ "github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/db/migrations"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type Manager struct {
	Db *sql.DB
}

func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := &Manager{
		Db: db,
	}

	if err = goose.Up(db, "./internal/db/migrations"); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return manager, nil
}

func (m *Manager) CreateOrder(order models.Order) error {
	tx, err := m.Db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO orders (uuid, customer_uuid, restaurant_uuid, status, payment_method, payment_status,
                            total_amount, delivery_address, delivery_distance_km, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, order.UUID, order.CustomerUUID, order.RestaurantUUID, order.Status, order.PaymentMethod,
		order.PaymentStatus, order.TotalAmount, order.DeliveryAddress, order.DeliveryDistanceKm, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, change := range order.StatusHistory {
		_, err = tx.Exec(`
            INSERT INTO order_status_history (order_uuid, status, changed_by, notes, changed_at)
            VALUES ($1, $2, $3, $4, $5)
        `, order.UUID, change.Status, change.ChangedBy, change.Notes, change.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert status history: %w", err)
		}
	}

	return tx.Commit()
}

func (m *Manager) GetOrder(orderUUID string) (*models.Order, error) {
	var order models.Order

	err := m.Db.QueryRow(`
		SELECT uuid, customer_uuid, restaurant_uuid, driver_uuid, status, payment_method, payment_status,
		       total_amount, delivery_address, delivery_distance_km, created_at
		FROM orders
		WHERE uuid = $1
	`, orderUUID).Scan(&order.UUID, &order.CustomerUUID, &order.RestaurantUUID, &order.DriverUUID,
		&order.Status, &order.PaymentMethod, &order.PaymentStatus, &order.TotalAmount,
		&order.DeliveryAddress, &order.DeliveryDistanceKm, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	rows, err := m.Db.Query(`
		SELECT status, changed_by, notes, changed_at
		FROM order_status_history
		WHERE order_uuid = $1
		ORDER BY changed_at, id
	`, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var change models.StatusChange
		if err = rows.Scan(&change.Status, &change.ChangedBy, &change.Notes, &change.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		order.StatusHistory = append(order.StatusHistory, change)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read status history: %w", err)
	}

	return &order, nil
}

func (m *Manager) ListOrders(filter ListFilter) ([]*models.Order, error) {
	query := `
		SELECT uuid, customer_uuid, restaurant_uuid, driver_uuid, status, payment_method, payment_status,
		       total_amount, delivery_address, delivery_distance_km, created_at
		FROM orders
		WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.RestaurantUUID != "" {
		args = append(args, filter.RestaurantUUID)
		query += fmt.Sprintf(" AND restaurant_uuid = $%d", len(args))
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, (filter.Page-1)*filter.Limit)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := m.Db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		var order models.Order
		err = rows.Scan(&order.UUID, &order.CustomerUUID, &order.RestaurantUUID, &order.DriverUUID,
			&order.Status, &order.PaymentMethod, &order.PaymentStatus, &order.TotalAmount,
			&order.DeliveryAddress, &order.DeliveryDistanceKm, &order.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus performs the transition as a compare-and-set against the
// persisted status. A concurrent writer that got there first makes the update
// match zero rows, which surfaces as ErrStatusConflict.
func (m *Manager) UpdateOrderStatus(orderUUID string, from, to models.OrderStatus, change models.StatusChange) error {
	tx, err := m.Db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE orders SET status = $1 WHERE uuid = $2 AND status = $3
	`, to, orderUUID, from)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	_, err = tx.Exec(`
		INSERT INTO order_status_history (order_uuid, status, changed_by, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, orderUUID, change.Status, change.ChangedBy, change.Notes, change.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}

	return tx.Commit()
}

func (m *Manager) AssignDriver(orderUUID string, driverUUID string) error {
	result, err := m.Db.Exec(`
		UPDATE orders SET driver_uuid = $1
		WHERE uuid = $2 AND status IN ('confirmed', 'preparing', 'ready_for_pickup')
	`, driverUUID, orderUUID)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	return nil
}

func (m *Manager) UpdatePaymentStatus(orderUUID string, status models.PaymentStatus) error {
	result, err := m.Db.Exec(`
		UPDATE orders SET payment_status = $1 WHERE uuid = $2
	`, status, orderUUID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (m *Manager) Close() error {
	return m.Db.Close()
}
