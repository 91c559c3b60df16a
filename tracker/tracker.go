// Package tracker keeps per-source request timestamps in memory and derives
// sliding-window frequency statistics from them.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blogem/reqtel/models"
)

const (
	// DefaultRetention is the maximum age a timestamp stays eligible for counting
	DefaultRetention = time.Hour

	// DefaultSweepInterval is how often expired timestamps are pruned
	DefaultSweepInterval = 5 * time.Minute

	// UnknownSource is the bucket used when the source address cannot be determined
	UnknownSource = "unknown"
)

// PruneResult describes a single sweep over the ledger
type PruneResult struct {
	Cutoff            time.Time
	RemovedTimestamps int
	RemovedSources    int
	RemainingSources  int
}

// Tracker maps a source identifier to its recent activity timestamps.
// All map access goes through mu; no I/O happens while it is held.
type Tracker struct {
	mu            sync.Mutex
	ledger        map[string][]time.Time
	retention     time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *zap.Logger
	onPrune       func(PruneResult)

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Tracker
type Option func(*Tracker)

// WithRetention overrides the retention horizon
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithSweepInterval overrides the sweep period
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.sweepInterval = d
		}
	}
}

// WithClock replaces the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the logger used by the sweep loop
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithPruneHook registers a callback invoked after every sweep
func WithPruneHook(fn func(PruneResult)) Option {
	return func(t *Tracker) {
		t.onPrune = fn
	}
}

// New creates an empty tracker. Call Start to run the periodic sweep.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		ledger:        make(map[string][]time.Time),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        zap.NewNop(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Retention returns the configured retention horizon
func (t *Tracker) Retention() time.Duration {
	return t.retention
}

// Record appends the current time to the source's sequence
func (t *Tracker) Record(source string) {
	source = normalizeSource(source)
	ts := t.now()

	t.mu.Lock()
	t.ledger[source] = append(t.ledger[source], ts)
	t.mu.Unlock()
}

// CountWithinWindow returns how many retained timestamps for source are
// no older than now-window. A non-positive window means one minute.
func (t *Tracker) CountWithinWindow(source string, window time.Duration) int {
	source = normalizeSource(source)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.ledger[source], now, window)
}

// TimeSincePrevious returns the gap between the two most recent timestamps
// of source. ok is false when fewer than two observations exist.
func (t *Tracker) TimeSincePrevious(source string) (gap time.Duration, ok bool) {
	source = normalizeSource(source)

	t.mu.Lock()
	defer t.mu.Unlock()
	return latestGap(t.ledger[source])
}

// Statistics assembles the derived statistics for source from one
// consistent view of its timestamps
func (t *Tracker) Statistics(source string) models.DerivedStatistics {
	return t.StatisticsWithin(source, 0)
}

// StatisticsWithin is Statistics plus the count for a caller-chosen window
func (t *Tracker) StatisticsWithin(source string, windowMinutes int) models.DerivedStatistics {
	source = normalizeSource(source)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	timestamps := t.ledger[source]
	stats := models.DerivedStatistics{
		Source:            source,
		RequestsPerMinute: countSince(timestamps, now, time.Minute),
		RequestsPerHour:   countSince(timestamps, now, time.Hour),
		TotalTracked:      len(timestamps),
	}
	if gap, ok := latestGap(timestamps); ok {
		ms := gap.Milliseconds()
		stats.TimeSinceLastMs = &ms
	}
	if windowMinutes > 0 {
		count := countSince(timestamps, now, time.Duration(windowMinutes)*time.Minute)
		stats.WindowMinutes = &windowMinutes
		stats.RequestsInWindow = &count
	}
	return stats
}

// countSince counts timestamps no older than now-window. Callers hold mu.
func countSince(timestamps []time.Time, now time.Time, window time.Duration) int {
	if window <= 0 {
		window = time.Minute
	}
	windowStart := now.Add(-window)

	count := 0
	for _, ts := range timestamps {
		if !ts.Before(windowStart) {
			count++
		}
	}
	return count
}

// latestGap selects the two largest timestamps instead of trusting
// insertion order. Callers hold mu.
func latestGap(timestamps []time.Time) (time.Duration, bool) {
	if len(timestamps) < 2 {
		return 0, false
	}

	latest, previous := timestamps[0], timestamps[1]
	if previous.After(latest) {
		latest, previous = previous, latest
	}
	for _, ts := range timestamps[2:] {
		switch {
		case ts.After(latest):
			previous, latest = latest, ts
		case ts.After(previous):
			previous = ts
		}
	}
	return latest.Sub(previous), true
}

// TotalTracked returns the number of retained timestamps for source
func (t *Tracker) TotalTracked(source string) int {
	source = normalizeSource(source)

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ledger[source])
}

// Forget drops every timestamp of source
func (t *Tracker) Forget(source string) {
	source = normalizeSource(source)

	t.mu.Lock()
	delete(t.ledger, source)
	t.mu.Unlock()
}

// Sources returns the number of live sources in the ledger
func (t *Tracker) Sources() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ledger)
}

// Prune removes timestamps older than the retention horizon and drops
// sources left without any. The cutoff is fixed when the sweep starts, so
// timestamps appended while waiting for the lock are always newer and kept.
func (t *Tracker) Prune() PruneResult {
	result := PruneResult{Cutoff: t.now().Add(-t.retention)}

	t.mu.Lock()
	for source, timestamps := range t.ledger {
		kept := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(result.Cutoff) {
				kept = append(kept, ts)
			}
		}
		result.RemovedTimestamps += len(timestamps) - len(kept)

		if len(kept) == 0 {
			delete(t.ledger, source)
			result.RemovedSources++
			continue
		}
		// Copy when most of the backing array is garbage so it can be released
		if cap(kept) > 2*len(kept) {
			kept = append([]time.Time(nil), kept...)
		}
		t.ledger[source] = kept
	}
	result.RemainingSources = len(t.ledger)
	t.mu.Unlock()

	if t.onPrune != nil {
		t.onPrune(result)
	}
	return result
}

// Start launches the periodic sweep. It returns immediately; the loop ends
// when ctx is cancelled or Stop is called.
func (t *Tracker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		t.started.Store(true)
		go t.sweepLoop(ctx)
	})
}

// Stop ends the sweep loop and waits for it to exit
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	if t.started.Load() {
		<-t.done
	}
}

func (t *Tracker) sweepLoop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := t.Prune()
			if result.RemovedTimestamps > 0 {
				t.logger.Debug("Frequency tracker sweep completed",
					zap.Int("removed_timestamps", result.RemovedTimestamps),
					zap.Int("removed_sources", result.RemovedSources),
					zap.Int("remaining_sources", result.RemainingSources))
			}
		case <-t.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func normalizeSource(source string) string {
	if source == "" {
		return UnknownSource
	}
	return source
}
