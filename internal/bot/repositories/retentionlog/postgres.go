// Package retentionlog provides the PostgreSQL-backed repository for the
// append-only audit trail of data lifecycle operations. Audit entries are
// themselves subject to retention and expire on the same cycle they record.
package retentionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one audit record.
func (r *PostgresRepository) Insert(ctx context.Context, entry *models.RetentionLogEntry) error {
	query := `
		INSERT INTO retention_log
			(pseudonym_id, operation_type, records_affected, date_range_start, date_range_end, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, operation_date
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.PseudonymID, entry.OperationType, entry.RecordsAffected,
		entry.DateRangeStart, entry.DateRangeEnd, entry.Reason).
		Scan(&entry.ID, &entry.OperationDate)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteOlderThan expires audit records strictly older than cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM retention_log WHERE operation_date < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// Stats aggregates the log: total operation count, records affected per
// operation type, and the most recent operation timestamp.
func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT operation_type, count(*), coalesce(sum(records_affected), 0), max(operation_date)
		FROM retention_log
		GROUP BY operation_type
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	stats := &Stats{RecordsByOperation: make(map[string]int64)}
	for rows.Next() {
		var (
			opType  string
			ops     int64
			records int64
			last    sql.NullTime
		)
		if err := rows.Scan(&opType, &ops, &records, &last); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		stats.TotalOperations += ops
		stats.RecordsByOperation[opType] = records
		if last.Valid && (stats.LastOperation == nil || last.Time.After(*stats.LastOperation)) {
			t := last.Time
			stats.LastOperation = &t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}
