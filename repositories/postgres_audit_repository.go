package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blogem/reqtel/models"
)

type postgresAuditRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditRepository creates a new Postgres audit repository
func NewPostgresAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &postgresAuditRepository{pool: pool}
}

// Create inserts a finalized audit record keyed by its correlation id
func (r *postgresAuditRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO security_logs (
			request_id, timestamp, ip_address, endpoint, http_method,
			user_id, user_agent, referer, response_status, response_time_ms,
			auth_success, failed_attempts_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		record.CorrelationID,
		recordTimestamp(record),
		record.SourceAddress,
		record.Endpoint,
		record.Method,
		record.UserID,
		record.UserAgent,
		record.Referer,
		record.StatusCode,
		record.LatencyMs,
		record.AuthSuccess,
		record.FailedAttempts,
	).Scan(&record.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrDuplicateCorrelationID, record.CorrelationID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// GetByCorrelationID retrieves a single audit record
func (r *postgresAuditRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM security_logs WHERE request_id = $1`

	record, err := scanPostgresRecord(r.pool.QueryRow(ctx, query, correlationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return record, nil
}

// List returns records matching the filter, newest first
func (r *postgresAuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= "+arg(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= "+arg(*filter.Until))
	}
	if filter.Source != "" {
		clauses = append(clauses, "ip_address = "+arg(filter.Source))
	}
	if filter.FlaggedOnly {
		clauses = append(clauses, `(flagged_for_review OR xss_patterns_detected
			OR sql_injection_patterns_detected OR directory_traversal_detected
			OR excessive_failed_logins OR excessive_request_frequency)`)
	}
	if filter.AuthOnly {
		clauses = append(clauses, "auth_success IS NOT NULL")
	}

	query := `SELECT ` + auditColumns + ` FROM security_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	query += " LIMIT " + arg(normalizeLimit(filter.Limit))
	query += " OFFSET " + arg(max(filter.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		record, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

// UpdateFlags overwrites the anomaly flags of a stored record
func (r *postgresAuditRepository) UpdateFlags(ctx context.Context, correlationID string, flags models.AnomalyFlags) error {
	query := `
		UPDATE security_logs
		SET flagged_for_review = $1, xss_patterns_detected = $2, sql_injection_patterns_detected = $3,
		    directory_traversal_detected = $4, excessive_failed_logins = $5, excessive_request_frequency = $6
		WHERE request_id = $7
	`

	tag, err := r.pool.Exec(ctx, query,
		flags.FlaggedForReview,
		flags.XSSDetected,
		flags.SQLInjectionFound,
		flags.TraversalDetected,
		flags.ExcessiveFailures,
		flags.ExcessiveFrequency,
		correlationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update anomaly flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary counts retained, flagged and failed-auth records
func (r *postgresAuditRepository) Summary(ctx context.Context) (*Summary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE flagged_for_review),
			COUNT(*) FILTER (WHERE auth_success = FALSE)
		FROM security_logs
	`

	var s Summary
	if err := r.pool.QueryRow(ctx, query).Scan(&s.Total, &s.Flagged, &s.FailedAuth); err != nil {
		return nil, fmt.Errorf("failed to summarize audit records: %w", err)
	}
	return &s, nil
}

// scanPostgresRecord relies on pgx scanning NULL into nil pointers
func scanPostgresRecord(row pgx.Row) (*models.AuditRecord, error) {
	var record models.AuditRecord
	var failedAttempts *int32

	err := row.Scan(
		&record.ID,
		&record.CorrelationID,
		&record.Timestamp,
		&record.SourceAddress,
		&record.Endpoint,
		&record.Method,
		&record.UserID,
		&record.UserAgent,
		&record.Referer,
		&record.StatusCode,
		&record.LatencyMs,
		&record.AuthSuccess,
		&failedAttempts,
		&record.FlaggedForReview,
		&record.XSSDetected,
		&record.SQLInjectionFound,
		&record.TraversalDetected,
		&record.ExcessiveFailures,
		&record.ExcessiveFrequency,
	)
	if err != nil {
		return nil, err
	}

	if failedAttempts != nil {
		n := int(*failedAttempts)
		record.FailedAttempts = &n
	}
	return &record, nil
}
