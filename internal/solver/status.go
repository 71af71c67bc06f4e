package solver

import (
	"fmt"
	"time"

	"sketchcore/pkg/sketch"
)

// Stage enumerates the pipeline states of an inference run.
type Stage string

// Pipeline stages in execution order. Error is reachable from any
// non-terminal stage and is itself terminal.
const (
	StageCreated          Stage = "created"
	StageStarted          Stage = "started"
	StageProcessedInputs  Stage = "processed_inputs"
	StageGeneratedGraph   Stage = "generated_graph"
	StageEvaluatedStatic  Stage = "evaluated_static"
	StageEvaluatedDynamic Stage = "evaluated_dynamic"
	StageFinished         Stage = "finished"
	StageError            Stage = "error"
)

// forward holds the single legal forward edge of each non-terminal stage.
var forward = map[Stage]Stage{
	StageCreated:          StageStarted,
	StageStarted:          StageProcessedInputs,
	StageProcessedInputs:  StageGeneratedGraph,
	StageGeneratedGraph:   StageEvaluatedStatic,
	StageEvaluatedStatic:  StageEvaluatedDynamic,
	StageEvaluatedDynamic: StageFinished,
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool { return s == StageFinished || s == StageError }

// StatusEvent is one appended entry of the status log. Detail entries repeat
// the current stage; transition entries move it forward.
type StatusEvent struct {
	Stage  Stage     `json:"stage"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// statusLog is the append-only stage history of one run. The last entry
// always carries the current stage.
type statusLog struct {
	events []StatusEvent
	nowFn  func() time.Time
}

func newStatusLog(nowFn func() time.Time) *statusLog {
	l := &statusLog{nowFn: nowFn}
	l.events = append(l.events, StatusEvent{Stage: StageCreated, At: nowFn()})
	return l
}

func (l *statusLog) current() Stage {
	return l.events[len(l.events)-1].Stage
}

// advance moves the log to stage, which must be the current stage's forward
// edge or Error from a non-terminal stage.
func (l *statusLog) advance(stage Stage, detail string) error {
	cur := l.current()
	if cur.Terminal() {
		return statef("run already ended in stage %s", cur)
	}
	if stage != StageError && forward[cur] != stage {
		return statef("cannot move from stage %s to %s", cur, stage)
	}
	l.events = append(l.events, StatusEvent{Stage: stage, Detail: detail, At: l.nowFn()})
	return nil
}

// note appends a detail entry without changing the stage.
func (l *statusLog) note(detail string) {
	l.events = append(l.events, StatusEvent{Stage: l.current(), Detail: detail, At: l.nowFn()})
}

func (l *statusLog) snapshot() []StatusEvent {
	out := make([]StatusEvent, len(l.events))
	copy(out, l.events)
	return out
}

// at returns the timestamp of the transition into the given stage.
func (l *statusLog) at(stage Stage) (time.Time, bool) {
	for _, ev := range l.events {
		if ev.Stage == stage {
			return ev.At, true
		}
	}
	return time.Time{}, false
}

func statef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sketch.ErrState, fmt.Sprintf(format, args...))
}
