package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/blogem/reqtel/metrics"
	"github.com/blogem/reqtel/models"
	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/reqctx"
	"github.com/blogem/reqtel/tracker"
)

// RequestIDHeader carries the correlation id back to the client
const RequestIDHeader = "X-Request-ID"

// DefaultWriteTimeout bounds a single background audit write
const DefaultWriteTimeout = 5 * time.Second

// ErrDraining is reported for records finalized after Drain was called
var ErrDraining = errors.New("audit interceptor is draining")

// ActorFunc resolves the acting user of a request after the handler ran.
// An empty result leaves the user unset.
type ActorFunc func(r *http.Request) string

// AuditInterceptor stamps every request with a correlation id, records its
// source in the frequency tracker and submits exactly one audit record per
// request once the response has been written.
type AuditInterceptor struct {
	sink           repositories.AuditSink
	tracker        *tracker.Tracker
	logger         *zap.Logger
	metrics        *metrics.Collector
	tracer         trace.Tracer
	actor          ActorFunc
	trustedProxies int
	writeTimeout   time.Duration
	now            func() time.Time
	newID          func() (string, error)

	fallbackSeq atomic.Uint64

	// mu orders inflight.Add against Drain's Wait
	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// InterceptorOption configures an AuditInterceptor
type InterceptorOption func(*AuditInterceptor)

// WithTrustedProxies sets how many reverse proxies in X-Forwarded-For are ours
func WithTrustedProxies(count int) InterceptorOption {
	return func(a *AuditInterceptor) {
		a.trustedProxies = count
	}
}

// WithActorFunc sets the acting-user lookup
func WithActorFunc(fn ActorFunc) InterceptorOption {
	return func(a *AuditInterceptor) {
		a.actor = fn
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(c *metrics.Collector) InterceptorOption {
	return func(a *AuditInterceptor) {
		a.metrics = c
	}
}

// WithWriteTimeout bounds each background sink write
func WithWriteTimeout(d time.Duration) InterceptorOption {
	return func(a *AuditInterceptor) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) InterceptorOption {
	return func(a *AuditInterceptor) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIDGenerator overrides correlation id generation
func WithIDGenerator(fn func() (string, error)) InterceptorOption {
	return func(a *AuditInterceptor) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// NewAuditInterceptor creates the audit middleware. A nil sink disables
// persistence; tr may be nil when frequency tracking is disabled.
func NewAuditInterceptor(sink repositories.AuditSink, tr *tracker.Tracker, logger *zap.Logger, opts ...InterceptorOption) *AuditInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AuditInterceptor{
		sink:         sink,
		tracker:      tr,
		logger:       logger.Named("audit"),
		tracer:       otel.Tracer("github.com/blogem/reqtel/middleware"),
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
		newID:        newUUID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Handler wraps next with audit interception
func (a *AuditInterceptor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := a.now()
		correlationID := a.correlationID()
		source := ClientIP(r, a.trustedProxies)

		draft := reqctx.NewAuditDraft(models.AuditRecord{
			CorrelationID: correlationID,
			Timestamp:     start.UTC(),
			SourceAddress: source,
			Endpoint:      r.URL.RequestURI(),
			Method:        r.Method,
			UserAgent:     models.StringPtr(r.UserAgent()),
			Referer:       models.StringPtr(r.Referer()),
		})

		if a.tracker != nil {
			a.tracker.Record(source)
		}

		w.Header().Set(RequestIDHeader, correlationID)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := reqctx.WithCorrelationID(r.Context(), correlationID)
		ctx = reqctx.WithAuditDraft(ctx, draft)
		r = r.WithContext(ctx)

		defer func() {
			rec := recover()
			status := ww.Status()
			if rec != nil && status == 0 {
				status = http.StatusInternalServerError
			}
			a.finalize(r, draft, status, start)
			if rec != nil {
				panic(rec)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

// finalize seals the draft and hands the record to the background writer
func (a *AuditInterceptor) finalize(r *http.Request, draft *reqctx.AuditDraft, status int, start time.Time) {
	// net/http sends 200 when the handler wrote nothing
	if status == 0 {
		status = http.StatusOK
	}

	a.resolveActor(r, draft)

	elapsed := a.now().Sub(start)
	record, ok := draft.Seal(status, elapsed.Milliseconds())
	if !ok {
		return
	}

	a.metrics.ObserveRequest(record.Method, record.StatusCode, elapsed)
	if a.sink != nil {
		a.submit(record)
	}
}

// ResolveActor looks up the acting user once the wrapped handler returns.
// Mount it inside middleware that the actor lookup depends on, such as the
// session middleware, while Handler stays outermost.
func (a *AuditInterceptor) ResolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer a.resolveActor(r, reqctx.AuditDraftFrom(r.Context()))
		next.ServeHTTP(w, r)
	})
}

func (a *AuditInterceptor) resolveActor(r *http.Request, draft *reqctx.AuditDraft) {
	if a.actor == nil || draft == nil || draft.HasUser() {
		return
	}
	if userID := a.safeActor(r); userID != "" {
		draft.SetUserID(userID)
	}
}

// safeActor keeps a failing session lookup from reaching the response path
func (a *AuditInterceptor) safeActor(r *http.Request) (userID string) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Warn("actor lookup panicked", zap.Any("panic", rec))
			userID = ""
		}
	}()
	return a.actor(r)
}

// submit writes the record in the background. Failures are logged and dropped.
func (a *AuditInterceptor) submit(record models.AuditRecord) {
	a.mu.Lock()
	if a.draining {
		a.mu.Unlock()
		a.metrics.ObserveAuditWrite(ErrDraining)
		a.logWriteFailure(record, ErrDraining)
		return
	}
	a.inflight.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("audit sink panic: %v", rec)
				a.metrics.ObserveAuditWrite(err)
				a.logWriteFailure(record, err)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()

		ctx, span := a.tracer.Start(ctx, "audit.write",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("reqtel.correlation_id", record.CorrelationID),
				attribute.String("http.target", record.Endpoint),
			),
		)
		defer span.End()

		err := a.sink.Create(ctx, &record)
		a.metrics.ObserveAuditWrite(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "audit write failed")
			a.logWriteFailure(record, err)
		}
	}()
}

func (a *AuditInterceptor) logWriteFailure(record models.AuditRecord, err error) {
	a.logger.Warn("failed to write audit record",
		zap.String("correlation_id", record.CorrelationID),
		zap.String("source", record.SourceAddress),
		zap.String("endpoint", record.Endpoint),
		zap.Error(err),
	)
}

// correlationID never fails; a broken random source degrades to a
// process-local id so the request still proceeds.
func (a *AuditInterceptor) correlationID() string {
	id, err := a.newID()
	if err == nil && id != "" {
		return id
	}
	fallback := fmt.Sprintf("local-%d-%d", a.now().UnixNano(), a.fallbackSeq.Add(1))
	a.logger.Warn("correlation id generation failed, using fallback",
		zap.String("correlation_id", fallback),
		zap.Error(err),
	)
	return fallback
}

// Drain stops accepting audit writes and waits for the in-flight ones or
// until ctx is done. Requests that complete afterwards are still tracked but
// their records are dropped.
func (a *AuditInterceptor) Drain(ctx context.Context) error {
	a.mu.Lock()
	a.draining = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit drain interrupted: %w", ctx.Err())
	}
}
