package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0006, Down0006)
}

func Up0006(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE user_stats (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    user_id UUID NOT NULL UNIQUE,
    day TIMESTAMP WITH TIME ZONE NOT NULL,
    submits_today INTEGER NOT NULL DEFAULT 0,
    accepted_total INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
CREATE TABLE trial_count (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    user_id UUID NOT NULL,
    problem_id UUID NOT NULL REFERENCES problem (id),
    count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT idx_trial_count UNIQUE (user_id, problem_id)
);
`)
	if err != nil {
		return err
	}

	return nil
}

func Down0006(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE trial_count;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE user_stats;`)
	if err != nil {
		return err
	}

	return nil
}
