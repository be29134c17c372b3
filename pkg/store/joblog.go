package store

import (
	"context"
	"fmt"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// AppendJobLog persists one log line for a job namespace.
func (s *Store) AppendJobLog(ctx context.Context, line model.JobLogLine) error {
	query := `
		INSERT INTO job_logs (namespace, level, message, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.q.ExecContext(ctx, query, line.Namespace, line.Level, line.Message, line.CreatedAt)
	return err
}

// JobLogTail returns the most recent log lines for a namespace, newest first.
func (s *Store) JobLogTail(ctx context.Context, namespace string, limit int) ([]model.JobLogLine, error) {
	query := `
		SELECT namespace, level, message, created_at
		FROM job_logs
		WHERE namespace = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.q.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()

	var lines []model.JobLogLine
	for rows.Next() {
		var line model.JobLogLine
		if err := rows.Scan(&line.Namespace, &line.Level, &line.Message, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
