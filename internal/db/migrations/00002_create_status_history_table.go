package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpStatusHistoryTable, DownStatusHistoryTable)
}

func UpStatusHistoryTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE order_status_history
(
    id SERIAL PRIMARY KEY,
    order_uuid UUID NOT NULL,
    status VARCHAR(32) NOT NULL,
    changed_by VARCHAR(255) NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    changed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
);
CREATE INDEX idx_status_history_order ON order_status_history (order_uuid);`)
	return err
}

func DownStatusHistoryTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE order_status_history;")
	return err
}
