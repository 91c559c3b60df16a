package repositories

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/blogem/reqtel/models"
)

// DefaultStreamMaxLen caps the mirror stream so it cannot grow without bound
const DefaultStreamMaxLen = 100000

// RedisAuditStream mirrors finalized audit records into a Redis stream for
// downstream consumers such as the anomaly classifier or a SIEM shipper.
type RedisAuditStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisAuditStream creates a stream mirror. maxLen <= 0 uses DefaultStreamMaxLen.
func NewRedisAuditStream(client *redis.Client, stream string, maxLen int64) *RedisAuditStream {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &RedisAuditStream{client: client, stream: stream, maxLen: maxLen}
}

// Create appends the record to the stream with approximate trimming
func (s *RedisAuditStream) Create(ctx context.Context, record *models.AuditRecord) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: streamValues(record),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit record to stream %s: %w", s.stream, err)
	}
	return nil
}

// streamValues flattens a record into stream fields; NULL columns are omitted
func streamValues(record *models.AuditRecord) map[string]any {
	values := map[string]any{
		"request_id":       record.CorrelationID,
		"timestamp":        recordTimestamp(record).Format("2006-01-02T15:04:05.000Z07:00"),
		"ip_address":       record.SourceAddress,
		"endpoint":         record.Endpoint,
		"http_method":      record.Method,
		"response_status":  strconv.Itoa(record.StatusCode),
		"response_time_ms": strconv.FormatInt(record.LatencyMs, 10),
	}
	if record.UserID != nil {
		values["user_id"] = *record.UserID
	}
	if record.UserAgent != nil {
		values["user_agent"] = *record.UserAgent
	}
	if record.Referer != nil {
		values["referer"] = *record.Referer
	}
	if record.AuthSuccess != nil {
		values["auth_success"] = strconv.FormatBool(*record.AuthSuccess)
	}
	if record.FailedAttempts != nil {
		values["failed_attempts_count"] = strconv.Itoa(*record.FailedAttempts)
	}
	return values
}
