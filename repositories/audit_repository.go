package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blogem/reqtel/models"
)

const auditColumns = `
	id, request_id, timestamp, ip_address, endpoint, http_method,
	user_id, user_agent, referer, response_status, response_time_ms,
	auth_success, failed_attempts_count,
	flagged_for_review, xss_patterns_detected, sql_injection_patterns_detected,
	directory_traversal_detected, excessive_failed_logins, excessive_request_frequency`

type sqliteAuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new SQLite audit repository
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &sqliteAuditRepository{db: db}
}

// Create inserts a finalized audit record keyed by its correlation id
func (r *sqliteAuditRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO security_logs (
			request_id, timestamp, ip_address, endpoint, http_method,
			user_id, user_agent, referer, response_status, response_time_ms,
			auth_success, failed_attempts_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
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
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateCorrelationID, record.CorrelationID)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// GetByCorrelationID retrieves a single audit record
func (r *sqliteAuditRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM security_logs WHERE request_id = ?`

	record, err := scanAuditRecord(r.db.QueryRowContext(ctx, query, correlationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return record, nil
}

// List returns records matching the filter, newest first
func (r *sqliteAuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.Until.UTC())
	}
	if filter.Source != "" {
		clauses = append(clauses, "ip_address = ?")
		args = append(args, filter.Source)
	}
	if filter.FlaggedOnly {
		clauses = append(clauses, `(flagged_for_review = 1 OR xss_patterns_detected = 1
			OR sql_injection_patterns_detected = 1 OR directory_traversal_detected = 1
			OR excessive_failed_logins = 1 OR excessive_request_frequency = 1)`)
	}
	if filter.AuthOnly {
		clauses = append(clauses, "auth_success IS NOT NULL")
	}

	query := `SELECT ` + auditColumns + ` FROM security_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, normalizeLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, *record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

// UpdateFlags overwrites the anomaly flags of a stored record
func (r *sqliteAuditRepository) UpdateFlags(ctx context.Context, correlationID string, flags models.AnomalyFlags) error {
	query := `
		UPDATE security_logs
		SET flagged_for_review = ?, xss_patterns_detected = ?, sql_injection_patterns_detected = ?,
		    directory_traversal_detected = ?, excessive_failed_logins = ?, excessive_request_frequency = ?
		WHERE request_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
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

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary counts retained, flagged and failed-auth records
func (r *sqliteAuditRepository) Summary(ctx context.Context) (*Summary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN flagged_for_review = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN auth_success = 0 THEN 1 ELSE 0 END), 0)
		FROM security_logs
	`

	var s Summary
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Flagged, &s.FailedAuth); err != nil {
		return nil, fmt.Errorf("failed to summarize audit records: %w", err)
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAuditRecord converts a row into a record, mapping NULL columns to nil
func scanAuditRecord(row rowScanner) (*models.AuditRecord, error) {
	var record models.AuditRecord
	var userID, userAgent, referer sql.NullString
	var authSuccess sql.NullBool
	var failedAttempts sql.NullInt64

	err := row.Scan(
		&record.ID,
		&record.CorrelationID,
		&record.Timestamp,
		&record.SourceAddress,
		&record.Endpoint,
		&record.Method,
		&userID,
		&userAgent,
		&referer,
		&record.StatusCode,
		&record.LatencyMs,
		&authSuccess,
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

	if userID.Valid {
		record.UserID = &userID.String
	}
	if userAgent.Valid {
		record.UserAgent = &userAgent.String
	}
	if referer.Valid {
		record.Referer = &referer.String
	}
	if authSuccess.Valid {
		record.AuthSuccess = &authSuccess.Bool
	}
	if failedAttempts.Valid {
		n := int(failedAttempts.Int64)
		record.FailedAttempts = &n
	}

	return &record, nil
}
