package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0004, Down0004)
}

func Up0004(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE problem (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    title TEXT NOT NULL,
    group_id UUID NOT NULL REFERENCES "group" (id),
    public BOOLEAN NOT NULL DEFAULT false,
    task_points JSONB NOT NULL DEFAULT '[]'::jsonb,
    deadlines JSONB NOT NULL DEFAULT '[]'::jsonb,
    daily_quota INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`)
	if err != nil {
		return err
	}

	return nil
}

func Down0004(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE problem;`)
	if err != nil {
		return err
	}

	return nil
}
