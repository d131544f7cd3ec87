package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0007, Down0007)
}

func Up0007(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE assignment_score (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    group_id UUID NOT NULL REFERENCES "group" (id),
    problem_id UUID NOT NULL REFERENCES problem (id),
    user_id UUID NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT idx_assignment_score UNIQUE (group_id, problem_id, user_id)
);
`)
	if err != nil {
		return err
	}

	return nil
}

func Down0007(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE assignment_score;`)
	if err != nil {
		return err
	}

	return nil
}
