package solver

import (
	"errors"
	"testing"
	"time"

	"sketchcore/pkg/sketch"
)

// testClock returns a deterministic clock advancing one second per call.
func testClock() func() time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestStatusLogForwardOnly(t *testing.T) {
	log := newStatusLog(testClock())
	if log.current() != StageCreated {
		t.Fatalf("expected created, got %s", log.current())
	}
	if err := log.advance(StageProcessedInputs, ""); !errors.Is(err, sketch.ErrState) {
		t.Fatalf("expected state error for skipped stage, got %v", err)
	}
	stages := []Stage{
		StageStarted, StageProcessedInputs, StageGeneratedGraph,
		StageEvaluatedStatic, StageEvaluatedDynamic, StageFinished,
	}
	for _, stage := range stages {
		if err := log.advance(stage, ""); err != nil {
			t.Fatalf("advance to %s: %v", stage, err)
		}
		if log.current() != stage {
			t.Fatalf("expected %s, got %s", stage, log.current())
		}
	}
	if !log.current().Terminal() {
		t.Fatalf("finished must be terminal")
	}
	if err := log.advance(StageError, "late"); !errors.Is(err, sketch.ErrState) {
		t.Fatalf("expected state error after finish, got %v", err)
	}
}

func TestStatusLogErrorStage(t *testing.T) {
	log := newStatusLog(testClock())
	if err := log.advance(StageStarted, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := log.advance(StageError, "engine exploded"); err != nil {
		t.Fatalf("advance to error: %v", err)
	}
	if got := log.current(); got != StageError || !got.Terminal() {
		t.Fatalf("expected terminal error stage, got %s", got)
	}
	if err := log.advance(StageProcessedInputs, ""); !errors.Is(err, sketch.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestStatusLogNotes(t *testing.T) {
	log := newStatusLog(testClock())
	if err := log.advance(StageStarted, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	log.note("first")
	log.note("second")
	if log.current() != StageStarted {
		t.Fatalf("notes must not change the stage, got %s", log.current())
	}
	events := log.snapshot()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[2].Detail != "first" || events[2].Stage != StageStarted {
		t.Fatalf("unexpected note event %+v", events[2])
	}
	events[2].Detail = "mutated"
	if log.snapshot()[2].Detail != "first" {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestStatusLogTimestamps(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log := newStatusLog(testClock())
	created, ok := log.at(StageCreated)
	if !ok || !created.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected created time %v", created)
	}
	if err := log.advance(StageStarted, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	started, ok := log.at(StageStarted)
	if !ok || !started.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected started time %v", started)
	}
	if _, ok := log.at(StageFinished); ok {
		t.Fatalf("finished must not be recorded yet")
	}
}
