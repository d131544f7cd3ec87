package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0010, Down0010)
}

func Up0010(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
ALTER TABLE submission ADD COLUMN binary_path TEXT NOT NULL DEFAULT '';
`)
	if err != nil {
		return err
	}

	return nil
}

func Down0010(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE submission DROP COLUMN binary_path;`)
	if err != nil {
		return err
	}

	return nil
}
