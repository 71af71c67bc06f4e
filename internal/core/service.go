package core

import (
	"context"
	"fmt"
	"time"

	"sketchcore/internal/infra/persistence/memory"
	"sketchcore/pkg/sketch"
)

type serviceOptions struct {
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	clock    Clock
	clockSet bool
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		clock:   ClockFunc(nil),
	}
}

// Option configures optional service collaborators.
type Option func(*serviceOptions)

// WithLogger installs a logger for operation outcomes.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit trail recorder.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClock overrides the timestamp source used for audit entries and
// durations. An explicit clock takes precedence over the store's own time
// provider.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
			o.clockSet = true
		}
	}
}

// Service exposes instrumented transactional operations over sketch and run
// records.
type Service struct {
	store   sketch.PersistentStore
	checker *sketch.Checker
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store sketch.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	checker := extractChecker(store)
	if checker == nil {
		checker = sketch.DefaultChecker()
	}
	return &Service{
		store:   store,
		checker: checker,
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,
		nowFn:   selectNowFunc(store, options),
	}
}

// NewInMemoryService creates a service over a fresh in-memory store using
// the given consistency checker.
func NewInMemoryService(checker *sketch.Checker, opts ...Option) *Service {
	return NewService(memory.NewStore(checker), opts...)
}

// extractChecker pulls the consistency checker off stores that expose one.
func extractChecker(store sketch.PersistentStore) *sketch.Checker {
	if provider, ok := store.(interface{ Checker() *sketch.Checker }); ok {
		return provider.Checker()
	}
	return nil
}

// selectNowFunc decides the service timestamp source. An explicitly
// configured clock wins; otherwise the store's own provider keeps audit
// timestamps aligned with record timestamps; the system clock is the last
// resort.
func selectNowFunc(store sketch.PersistentStore, options serviceOptions) func() time.Time {
	if options.clockSet {
		return options.clock.Now
	}
	if provider, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	return options.clock.Now
}

// Store returns the underlying storage implementation.
func (s *Service) Store() sketch.PersistentStore {
	return s.store
}

// Checker returns the consistency checker associated with the service.
func (s *Service) Checker() *sketch.Checker {
	return s.checker
}

// Now returns the service's current timestamp.
func (s *Service) Now() time.Time {
	return s.nowFn()
}

// run executes one instrumented operation: span, metrics, audit, logs.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) error {
	start := s.nowFn()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	duration := s.nowFn().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, op, entityID, err, duration)
		s.logger.Error("service operation failed", "operation", op, "error", err.Error())
		return err
	}
	s.recordAuditSuccess(ctx, op, entityID, duration)
	s.logger.Debug("service operation complete", "operation", op, "entity_id", entityID)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.nowFn(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, err error, duration time.Duration) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.nowFn(),
	})
}

// CreateSketch persists a new sketch record. The returned Result carries the
// advisory consistency findings of the commit.
func (s *Service) CreateSketch(ctx context.Context, rec SketchRecord) (SketchRecord, Result, error) {
	var created SketchRecord
	var res Result
	err := s.run(ctx, "create_sketch", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var e error
			created, e = tx.CreateSketch(rec)
			return e
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateSketch mutates a sketch record using the provided mutator.
func (s *Service) UpdateSketch(ctx context.Context, id string, mutator func(*SketchRecord) error) (SketchRecord, Result, error) {
	var updated SketchRecord
	var res Result
	err := s.run(ctx, "update_sketch", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var e error
			updated, e = tx.UpdateSketch(id, mutator)
			return e
		})
		return id, err
	})
	return updated, res, err
}

// DeleteSketch removes a sketch record along with its runs.
func (s *Service) DeleteSketch(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_sketch", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteSketch(id)
		})
		return id, err
	})
	return res, err
}

// GetSketch retrieves a committed sketch record.
func (s *Service) GetSketch(id string) (SketchRecord, bool) {
	return s.store.GetSketch(id)
}

// ListSketches returns all committed sketch records.
func (s *Service) ListSketches() []SketchRecord {
	return s.store.ListSketches()
}

// CreateRun persists a new run record referencing a stored sketch.
func (s *Service) CreateRun(ctx context.Context, rec RunRecord) (RunRecord, Result, error) {
	var created RunRecord
	var res Result
	err := s.run(ctx, "create_run", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var e error
			created, e = tx.CreateRun(rec)
			return e
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateRun mutates a run record using the provided mutator.
func (s *Service) UpdateRun(ctx context.Context, id string, mutator func(*RunRecord) error) (RunRecord, Result, error) {
	var updated RunRecord
	var res Result
	err := s.run(ctx, "update_run", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var e error
			updated, e = tx.UpdateRun(id, mutator)
			return e
		})
		return id, err
	})
	return updated, res, err
}

// DeleteRun removes a run record.
func (s *Service) DeleteRun(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_run", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteRun(id)
		})
		return id, err
	})
	return res, err
}

// GetRun retrieves a committed run record.
func (s *Service) GetRun(id string) (RunRecord, bool) {
	return s.store.GetRun(id)
}

// ListRuns returns all committed run records.
func (s *Service) ListRuns() []RunRecord {
	return s.store.ListRuns()
}

// CheckSketch runs the consistency checker against a stored sketch and
// returns the full report. Unlike commit-time checking this is on demand
// and does not mutate anything.
func (s *Service) CheckSketch(ctx context.Context, id string) (Report, error) {
	var report Report
	err := s.run(ctx, "check_sketch", func(ctx context.Context) (string, error) {
		rec, ok := s.store.GetSketch(id)
		if !ok {
			return id, fmt.Errorf("%w: sketch %q", sketch.ErrNotFound, id)
		}
		var err error
		report, err = s.checker.Run(ctx, rec.Sketch)
		return id, err
	})
	return report, err
}
