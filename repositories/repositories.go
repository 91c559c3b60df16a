package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blogem/reqtel/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("audit record not found")

	// ErrDuplicateCorrelationID is returned when a correlation id was already stored
	ErrDuplicateCorrelationID = errors.New("duplicate correlation id")
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// AuditSink is the append-only destination of finalized audit records
type AuditSink interface {
	Create(ctx context.Context, record *models.AuditRecord) error
}

// AuditFilter controls which records List returns
type AuditFilter struct {
	Since       *time.Time
	Until       *time.Time
	Source      string
	FlaggedOnly bool
	AuthOnly    bool
	Limit       int
	Offset      int
}

// Summary holds retained-store counters
type Summary struct {
	Total      int `json:"total"`
	Flagged    int `json:"flagged"`
	FailedAuth int `json:"failed_auth"`
}

// AuditRepository is an AuditSink that can also be read back for review
type AuditRepository interface {
	AuditSink
	GetByCorrelationID(ctx context.Context, correlationID string) (*models.AuditRecord, error)
	List(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error)
	UpdateFlags(ctx context.Context, correlationID string, flags models.AnomalyFlags) error
	Summary(ctx context.Context) (*Summary, error)
}

// Repositories struct holds all repository interfaces
type Repositories struct {
	Audit AuditRepository
	Sink  AuditSink
}

// NewRepositories creates the SQLite backed repositories
func NewRepositories(db *sql.DB, mirrors ...AuditSink) *Repositories {
	audit := NewAuditRepository(db)
	return &Repositories{
		Audit: audit,
		Sink:  NewFanoutSink(audit, mirrors...),
	}
}

// NewPostgresRepositories creates the Postgres backed repositories
func NewPostgresRepositories(pool *pgxpool.Pool, mirrors ...AuditSink) *Repositories {
	audit := NewPostgresAuditRepository(pool)
	return &Repositories{
		Audit: audit,
		Sink:  NewFanoutSink(audit, mirrors...),
	}
}

// normalizeLimit clamps a requested page size
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// recordTimestamp returns the arrival time of the record in UTC
func recordTimestamp(record *models.AuditRecord) time.Time {
	if record.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return record.Timestamp.UTC()
}
