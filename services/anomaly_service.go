package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blogem/reqtel/metrics"
	"github.com/blogem/reqtel/models"
	"github.com/blogem/reqtel/repositories"
)

// Classifier defaults
const (
	DefaultFailedAttemptThreshold = 5
	DefaultFailureWindow          = 15 * time.Minute
	DefaultRequestRateThreshold   = 120
	DefaultRequestRateWindow      = time.Minute
	DefaultBatchLimit             = 500
)

// Signature patterns are heuristics for the review dashboard, not a filter
var (
	xssPattern = regexp.MustCompile(`(?i)(<\s*script|javascript\s*:|<[^>]*\bon[a-z]+\s*=|<\s*iframe|<\s*svg[^>]*on|document\.cookie|alert\s*\()`)

	sqlInjectionPattern = regexp.MustCompile(`(?i)('\s*(or|and)\s+['\d\w]+\s*=|\bunion\b[\s\S]*\bselect\b|;\s*(drop|delete|insert|update|shutdown)\b|'\s*--|/\*[\s\S]*\*/|\b(sleep|benchmark|pg_sleep)\s*\()`)

	traversalPattern = regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e|%252e|/etc/passwd|\\windows\\win\.ini|/proc/self/)`)
)

// AnomalyConfig holds classifier thresholds. RequestRateThreshold is the
// number of requests a single source may make within RequestRateWindow.
type AnomalyConfig struct {
	FailedAttemptThreshold int
	FailureWindow          time.Duration
	RequestRateThreshold   int
	RequestRateWindow      time.Duration
	BatchLimit             int
}

// AnomalyService interface defines anomaly classification over stored audit records
type AnomalyService interface {
	Classify(records []models.AuditRecord) map[string]models.AnomalyFlags
	ClassifyRecent(ctx context.Context, since time.Time) (*models.ClassificationResult, error)
}

// anomalyService implements AnomalyService interface
type anomalyService struct {
	auditRepo repositories.AuditRepository
	config    AnomalyConfig
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnomalyService creates a new anomaly service
func NewAnomalyService(auditRepo repositories.AuditRepository, config AnomalyConfig, collector *metrics.Collector, logger *zap.Logger) AnomalyService {
	if config.FailedAttemptThreshold <= 0 {
		config.FailedAttemptThreshold = DefaultFailedAttemptThreshold
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = DefaultFailureWindow
	}
	if config.RequestRateThreshold <= 0 {
		config.RequestRateThreshold = DefaultRequestRateThreshold
	}
	if config.RequestRateWindow <= 0 {
		config.RequestRateWindow = DefaultRequestRateWindow
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &anomalyService{
		auditRepo: auditRepo,
		config:    config,
		metrics:   collector,
		logger:    logger.Named("anomaly"),
		now:       time.Now,
	}
}

// Classify computes the flags of every record, keyed by correlation id.
// It does not read or write the store.
func (s *anomalyService) Classify(records []models.AuditRecord) map[string]models.AnomalyFlags {
	result := make(map[string]models.AnomalyFlags, len(records))
	for i := range records {
		result[records[i].CorrelationID] = signatureFlags(&records[i])
	}

	for id := range s.excessiveFailures(records) {
		flags := result[id]
		flags.ExcessiveFailures = true
		result[id] = flags
	}

	for id := range s.excessiveFrequency(records) {
		flags := result[id]
		flags.ExcessiveFrequency = true
		result[id] = flags
	}

	for id, flags := range result {
		result[id] = flags.Normalize()
	}
	return result
}

// ClassifyRecent classifies records stored since the given time and writes
// back flags that changed. Running it twice in a row updates nothing the
// second time.
func (s *anomalyService) ClassifyRecent(ctx context.Context, since time.Time) (*models.ClassificationResult, error) {
	started := s.now()
	result := &models.ClassificationResult{
		Since: since.UTC(),
		Kinds: make(map[string]int),
	}

	// Earlier records still count towards the windows of records after since
	records, err := s.loadSince(ctx, since.Add(-max(s.config.FailureWindow, s.config.RequestRateWindow)), started)
	if err != nil {
		return nil, err
	}

	classified := s.Classify(records)
	for i := range records {
		record := &records[i]
		if record.Timestamp.Before(since) {
			continue
		}
		result.Scanned++

		flags := classified[record.CorrelationID]
		if flags == record.AnomalyFlags {
			continue
		}

		if err := s.auditRepo.UpdateFlags(ctx, record.CorrelationID, flags); err != nil {
			return nil, fmt.Errorf("failed to update flags for %s: %w", record.CorrelationID, err)
		}
		result.Updated++

		switch {
		case flags.Any() && !record.Any():
			result.NewlyFlagged++
			s.metrics.ObserveFlagged(flags.Kinds())
		case !flags.Any() && record.Any():
			result.Cleared++
		}
		for _, kind := range flags.Kinds() {
			result.Kinds[kind]++
		}
	}

	result.Success = true
	result.Duration = s.now().Sub(started)
	result.Message = fmt.Sprintf("scanned %d records, updated %d", result.Scanned, result.Updated)

	s.logger.Info("classification run completed",
		zap.Time("since", result.Since),
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("newly_flagged", result.NewlyFlagged),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// loadSince pages through the store, deduplicating by correlation id
func (s *anomalyService) loadSince(ctx context.Context, from, until time.Time) ([]models.AuditRecord, error) {
	seen := make(map[string]bool)
	var records []models.AuditRecord

	for offset := 0; ; offset += s.config.BatchLimit {
		page, err := s.auditRepo.List(ctx, repositories.AuditFilter{
			Since:  &from,
			Until:  &until,
			Limit:  s.config.BatchLimit,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load audit records: %w", err)
		}

		for _, record := range page {
			if seen[record.CorrelationID] {
				continue
			}
			seen[record.CorrelationID] = true
			records = append(records, record)
		}

		if len(page) < s.config.BatchLimit {
			return records, nil
		}
	}
}

// excessiveFailures returns the failed-auth records whose source or actor
// exceeded the threshold within the failure window ending at that record,
// plus records whose own failed-attempt counter exceeds it.
func (s *anomalyService) excessiveFailures(records []models.AuditRecord) map[string]bool {
	flagged := make(map[string]bool)
	groups := make(map[string][]*models.AuditRecord)

	for i := range records {
		record := &records[i]
		if !record.IsFailedAuth() {
			continue
		}
		if record.FailedAttempts != nil && *record.FailedAttempts > s.config.FailedAttemptThreshold {
			flagged[record.CorrelationID] = true
		}
		groups["source:"+record.SourceAddress] = append(groups["source:"+record.SourceAddress], record)
		if actor := record.Actor(); actor != "" {
			groups["actor:"+actor] = append(groups["actor:"+actor], record)
		}
	}

	for _, group := range groups {
		flagWindowOverflow(group, s.config.FailureWindow, s.config.FailedAttemptThreshold, flagged)
	}
	return flagged
}

// excessiveFrequency returns the records whose source made more than the
// request rate threshold within the rate window ending at that record.
func (s *anomalyService) excessiveFrequency(records []models.AuditRecord) map[string]bool {
	flagged := make(map[string]bool)
	groups := make(map[string][]*models.AuditRecord)

	for i := range records {
		record := &records[i]
		groups[record.SourceAddress] = append(groups[record.SourceAddress], record)
	}

	for _, group := range groups {
		if len(group) <= s.config.RequestRateThreshold {
			continue
		}
		flagWindowOverflow(group, s.config.RequestRateWindow, s.config.RequestRateThreshold, flagged)
	}
	return flagged
}

// flagWindowOverflow sorts group by time and marks every record that ends a
// window holding more than threshold records
func flagWindowOverflow(group []*models.AuditRecord, window time.Duration, threshold int, flagged map[string]bool) {
	sort.Slice(group, func(i, j int) bool {
		return group[i].Timestamp.Before(group[j].Timestamp)
	})

	start := 0
	for end, record := range group {
		windowStart := record.Timestamp.Add(-window)
		for group[start].Timestamp.Before(windowStart) {
			start++
		}
		if end-start+1 > threshold {
			flagged[record.CorrelationID] = true
		}
	}
}

// signatureFlags matches attack signatures against the request-controlled fields
func signatureFlags(record *models.AuditRecord) models.AnomalyFlags {
	var flags models.AnomalyFlags
	for _, field := range []*string{&record.Endpoint, record.UserAgent, record.Referer} {
		if field == nil || *field == "" {
			continue
		}
		for _, candidate := range decodeVariants(*field) {
			flags.XSSDetected = flags.XSSDetected || xssPattern.MatchString(candidate)
			flags.SQLInjectionFound = flags.SQLInjectionFound || sqlInjectionPattern.MatchString(candidate)
			flags.TraversalDetected = flags.TraversalDetected || traversalPattern.MatchString(candidate)
		}
	}
	return flags
}

// decodeVariants returns the raw value and up to two rounds of URL decoding
func decodeVariants(raw string) []string {
	variants := []string{raw}
	current := raw
	for i := 0; i < 2 && strings.Contains(current, "%"); i++ {
		decoded, err := url.QueryUnescape(current)
		if err != nil || decoded == current {
			break
		}
		variants = append(variants, decoded)
		current = decoded
	}
	return variants
}
