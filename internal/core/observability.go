package core

import (
	"context"
	"time"
)

// Logger is the leveled key-value logging seam used by the service layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan ends a span, recording the operation error if any.
type TraceSpan interface {
	End(err error)
}

// AuditStatus classifies an audit entry outcome.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// EntityKind names the record type an audit entry refers to.
type EntityKind string

// Audited record kinds.
const (
	EntitySketch EntityKind = "sketch"
	EntityRun    EntityKind = "run"
)

// Action names the mutation an audit entry records.
type Action string

// Audited mutations.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// AuditEntry is one recorded service mutation.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    EntityKind    `json:"entity"`
	Action    Action        `json:"action"`
	EntityID  string        `json:"entity_id,omitempty"`
	Status    AuditStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Clock supplies timestamps for audit entries.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil function falls
// back to the system clock. Times are normalized to UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// auditOperations maps instrumented operations onto the entity and action
// recorded in their audit entries. Operations absent from the map are
// metered and traced but never audited.
var auditOperations = map[string]struct {
	entity EntityKind
	action Action
}{
	"create_sketch": {EntitySketch, ActionCreate},
	"update_sketch": {EntitySketch, ActionUpdate},
	"delete_sketch": {EntitySketch, ActionDelete},
	"create_run":    {EntityRun, ActionCreate},
	"update_run":    {EntityRun, ActionUpdate},
	"delete_run":    {EntityRun, ActionDelete},
}
