package sketch

import (
	"context"
	"time"
)

// Base carries identity and audit timestamps shared by stored records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SketchRecord is a stored sketch with its record metadata.
type SketchRecord struct {
	Base
	Name   string  `json:"name"`
	Sketch *Sketch `json:"sketch"`
}

// RunStatus enumerates the lifecycle of a stored inference run.
type RunStatus string

// Run lifecycle states.
const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// StageEvent is one timestamped entry of a run's stage log.
type StageEvent struct {
	Stage  string    `json:"stage"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// RunSummary captures the outcome of a finished inference run.
type RunSummary struct {
	ApproxCardinality float64       `json:"approx_cardinality"`
	Duration          time.Duration `json:"duration"`
	Stages            []StageEvent  `json:"stages,omitempty"`
}

// RunRecord is a stored inference run over one sketch record.
type RunRecord struct {
	Base
	SketchID    string      `json:"sketch_id"`
	Status      RunStatus   `json:"status"`
	Error       string      `json:"error,omitempty"`
	Summary     *RunSummary `json:"summary,omitempty"`
	ArchiveKey  string      `json:"archive_key,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Violation is one advisory consistency finding raised while committing a
// transaction. Commits proceed regardless; inference is where consistency
// becomes blocking.
type Violation struct {
	Check    string `json:"check"`
	Message  string `json:"message"`
	SketchID string `json:"sketch_id"`
}

// Result aggregates the advisory findings of one transaction.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge combines two results.
func (r Result) Merge(other Result) Result {
	if len(other.Violations) == 0 {
		return r
	}
	merged := Result{Violations: make([]Violation, 0, len(r.Violations)+len(other.Violations))}
	merged.Violations = append(merged.Violations, r.Violations...)
	merged.Violations = append(merged.Violations, other.Violations...)
	return merged
}

// OK reports whether the result carries no findings.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// ReportViolations flattens a consistency report into per-record findings.
func ReportViolations(sketchID string, report Report) []Violation {
	var out []Violation
	for _, s := range report.Sections {
		for _, issue := range s.Issues {
			out = append(out, Violation{Check: s.Name, Message: issue, SketchID: sketchID})
		}
	}
	return out
}

// Transaction exposes the record operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateSketch(SketchRecord) (SketchRecord, error)
	UpdateSketch(id string, mutator func(*SketchRecord) error) (SketchRecord, error)
	DeleteSketch(id string) error
	CreateRun(RunRecord) (RunRecord, error)
	UpdateRun(id string, mutator func(*RunRecord) error) (RunRecord, error)
	DeleteRun(id string) error
	FindSketch(id string) (SketchRecord, bool)
	FindRun(id string) (RunRecord, bool)
}

// TransactionView provides read-only access to committed data.
type TransactionView interface {
	ListSketches() []SketchRecord
	ListRuns() []RunRecord
	FindSketch(id string) (SketchRecord, bool)
	FindRun(id string) (RunRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSketch(id string) (SketchRecord, bool)
	ListSketches() []SketchRecord
	GetRun(id string) (RunRecord, bool)
	ListRuns() []RunRecord
}
