package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/reqtel/database"
	"github.com/blogem/reqtel/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	// Initialize test database using the actual migration system
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	db, err := database.InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func newRecord(correlationID, source string, at time.Time) *models.AuditRecord {
	return &models.AuditRecord{
		CorrelationID: correlationID,
		Timestamp:     at,
		SourceAddress: source,
		Endpoint:      "/api/monitoring/stats",
		Method:        "GET",
		StatusCode:    200,
		LatencyMs:     12,
	}
}

func TestAuditRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	record := newRecord("req-1", "10.0.0.1", now)
	record.UserAgent = models.StringPtr("curl/8.0")

	// Test Create
	require.NoError(t, repo.Create(ctx, record))
	if record.ID == 0 {
		t.Error("Expected record ID to be set after creation")
	}

	// Test GetByCorrelationID
	retrieved, err := repo.GetByCorrelationID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", retrieved.SourceAddress)
	assert.Equal(t, "GET", retrieved.Method)
	assert.Equal(t, 200, retrieved.StatusCode)
	assert.Equal(t, int64(12), retrieved.LatencyMs)
	assert.True(t, retrieved.Timestamp.Equal(now))
	require.NotNil(t, retrieved.UserAgent)
	assert.Equal(t, "curl/8.0", *retrieved.UserAgent)

	// Absent optional fields stay absent
	assert.Nil(t, retrieved.UserID)
	assert.Nil(t, retrieved.Referer)
	assert.Nil(t, retrieved.AuthSuccess)
	assert.Nil(t, retrieved.FailedAttempts)
	assert.False(t, retrieved.IsAuthEvent())

	// Test missing record
	_, err = repo.GetByCorrelationID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditRepository_DuplicateCorrelationID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("dup", "10.0.0.1", time.Now())))

	err := repo.Create(ctx, newRecord("dup", "10.0.0.2", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateCorrelationID)

	// The first write wins
	stored, err := repo.GetByCorrelationID(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", stored.SourceAddress)
}

func TestAuditRepository_AuthOutcome(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	success := false
	attempts := 3
	record := newRecord("login-1", "10.0.0.9", time.Now())
	record.Endpoint = "/callback"
	record.StatusCode = 401
	record.UserID = models.StringPtr("alice")
	record.AuthSuccess = &success
	record.FailedAttempts = &attempts

	require.NoError(t, repo.Create(ctx, record))

	stored, err := repo.GetByCorrelationID(ctx, "login-1")
	require.NoError(t, err)
	require.NotNil(t, stored.AuthSuccess)
	assert.False(t, *stored.AuthSuccess)
	require.NotNil(t, stored.FailedAttempts)
	assert.Equal(t, 3, *stored.FailedAttempts)
	assert.True(t, stored.IsFailedAuth())
	assert.Equal(t, "alice", stored.Actor())
}

func TestAuditRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, source := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"} {
		rec := newRecord(string(rune('a'+i)), source, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, rec))
	}

	// Newest first
	all, err := repo.List(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].CorrelationID)
	assert.Equal(t, "a", all[2].CorrelationID)

	bySource, err := repo.List(ctx, AuditFilter{Source: "10.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, bySource, 2)

	since := base.Add(30 * time.Second)
	recent, err := repo.List(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := repo.List(ctx, AuditFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].CorrelationID)
}

func TestAuditRepository_UpdateFlags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("clean", "10.0.0.1", time.Now())))
	require.NoError(t, repo.Create(ctx, newRecord("bad", "10.0.0.2", time.Now())))

	flags := models.AnomalyFlags{XSSDetected: true}.Normalize()
	require.NoError(t, repo.UpdateFlags(ctx, "bad", flags))

	flagged, err := repo.List(ctx, AuditFilter{FlaggedOnly: true})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "bad", flagged[0].CorrelationID)
	assert.True(t, flagged[0].XSSDetected)
	assert.True(t, flagged[0].FlaggedForReview)

	summary, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Flagged)
	assert.Equal(t, 0, summary.FailedAuth)

	err = repo.UpdateFlags(ctx, "missing", flags)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditRepository_ExcessiveFrequencyRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("flood", "10.0.0.3", time.Now())))
	require.NoError(t, repo.UpdateFlags(ctx, "flood", models.AnomalyFlags{ExcessiveFrequency: true}))

	// FlaggedOnly matches the column even without the review flag
	flagged, err := repo.List(ctx, AuditFilter{FlaggedOnly: true})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.True(t, flagged[0].ExcessiveFrequency)

	record, err := repo.GetByCorrelationID(ctx, "flood")
	require.NoError(t, err)
	assert.Equal(t, models.AnomalyFlags{ExcessiveFrequency: true}, record.AnomalyFlags)
}

func TestAuditRepository_ConcurrentCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Create(ctx, newRecord(string(rune('A'+i)), "10.0.0.1", time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	summary, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Total)
}

func TestRedisAuditStream(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	stream := NewRedisAuditStream(client, "reqtel:audit", 0)
	ctx := context.Background()

	success := true
	record := newRecord("req-9", "192.0.2.4", time.Now())
	record.AuthSuccess = &success
	require.NoError(t, stream.Create(ctx, record))

	entries, err := client.XRange(ctx, "reqtel:audit", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-9", entries[0].Values["request_id"])
	assert.Equal(t, "192.0.2.4", entries[0].Values["ip_address"])
	assert.Equal(t, "200", entries[0].Values["response_status"])
	assert.Equal(t, "true", entries[0].Values["auth_success"])
	assert.NotContains(t, entries[0].Values, "user_id")
}

func TestRedisAuditStream_Unavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	srv.Close()

	stream := NewRedisAuditStream(client, "reqtel:audit", 10)
	err := stream.Create(context.Background(), newRecord("req-1", "10.0.0.1", time.Now()))
	assert.Error(t, err)
}

type recordingSink struct {
	mu      sync.Mutex
	records []string
	err     error
}

func (s *recordingSink) Create(_ context.Context, record *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.CorrelationID)
	return s.err
}

func TestFanoutSink(t *testing.T) {
	primary := &recordingSink{}
	mirror := &recordingSink{}
	sink := NewFanoutSink(primary, mirror)

	require.NoError(t, sink.Create(context.Background(), newRecord("req-1", "10.0.0.1", time.Now())))
	assert.Equal(t, []string{"req-1"}, primary.records)
	assert.Equal(t, []string{"req-1"}, mirror.records)
}

func TestFanoutSink_JoinsFailures(t *testing.T) {
	primaryErr := errors.New("disk full")
	mirrorErr := errors.New("redis down")
	primary := &recordingSink{err: primaryErr}
	mirror := &recordingSink{err: mirrorErr}
	sink := NewFanoutSink(primary, mirror)

	err := sink.Create(context.Background(), newRecord("req-1", "10.0.0.1", time.Now()))
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, mirrorErr)

	// Mirror still receives the record
	assert.Len(t, mirror.records, 1)
}

func TestFanoutSink_NoMirrors(t *testing.T) {
	primary := &recordingSink{}
	assert.Same(t, AuditSink(primary), NewFanoutSink(primary))
}

func TestPostgresAuditRepository(t *testing.T) {
	url := os.Getenv("REQTEL_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("REQTEL_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := database.OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	truncate(t, pool)

	repo := NewPostgresAuditRepository(pool)
	record := newRecord("pg-1", "10.0.0.1", time.Now())
	require.NoError(t, repo.Create(ctx, record))
	assert.NotZero(t, record.ID)

	assert.ErrorIs(t, repo.Create(ctx, newRecord("pg-1", "10.0.0.1", time.Now())), ErrDuplicateCorrelationID)

	require.NoError(t, repo.UpdateFlags(ctx, "pg-1", models.AnomalyFlags{FlaggedForReview: true, TraversalDetected: true}))
	flagged, err := repo.List(ctx, AuditFilter{FlaggedOnly: true})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.True(t, flagged[0].TraversalDetected)

	summary, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Flagged)
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE security_logs")
	require.NoError(t, err)
}
