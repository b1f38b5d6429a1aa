package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpReportsTable, DownReportsTable)
}

func UpReportsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE reports
(
    uuid UUID PRIMARY KEY,
    order_uuid UUID NOT NULL UNIQUE REFERENCES orders (uuid) ON DELETE CASCADE,
    verification_result VARCHAR(50),
    verification_details JSONB,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
);`)
	return err
}

func DownReportsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE reports;")
	return err
}
