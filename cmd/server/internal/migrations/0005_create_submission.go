package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0005, Down0005)
}

func Up0005(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE submission (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    problem_id UUID NOT NULL REFERENCES problem (id),
    user_id UUID NOT NULL,
    kind TEXT NOT NULL,
    language TEXT NOT NULL,
    status INTEGER NOT NULL DEFAULT -2,
    score INTEGER NOT NULL DEFAULT -1,
    tasks JSONB NOT NULL DEFAULT '[]'::jsonb,
    exec_time_ms BIGINT NOT NULL DEFAULT 0,
    memory_kb BIGINT NOT NULL DEFAULT 0,
    code_path TEXT NOT NULL,
    project_mode BOOLEAN NOT NULL DEFAULT false,
    ip_addr TEXT NOT NULL DEFAULT '',
    checker_summary TEXT NOT NULL DEFAULT '',
    checker_report_path TEXT NOT NULL DEFAULT '',
    analysis_outcome TEXT NOT NULL DEFAULT '',
    analysis_message TEXT NOT NULL DEFAULT '',
    analysis_report_path TEXT NOT NULL DEFAULT '',
    scorer_message TEXT NOT NULL DEFAULT '',
    scorer_report_path TEXT NOT NULL DEFAULT '',
    scorer_breakdown JSONB DEFAULT NULL,
    use_default_cases BOOLEAN NOT NULL DEFAULT true,
    custom_input_path TEXT NOT NULL DEFAULT '',
    expires_at TIMESTAMP WITH TIME ZONE DEFAULT NULL,
    last_send TIMESTAMP WITH TIME ZONE DEFAULT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
CREATE INDEX idx_submission_problem_user ON submission (problem_id, user_id);
`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
CREATE INDEX idx_submission_expires_at ON submission (expires_at) WHERE expires_at IS NOT NULL;
`)
	if err != nil {
		return err
	}

	return nil
}

func Down0005(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE submission;`)
	if err != nil {
		return err
	}

	return nil
}
