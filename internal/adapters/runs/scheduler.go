// Package runs executes inference runs asynchronously and exposes them over
// HTTP. A worker pulls queued runs off a bounded channel, asserts sketch
// consistency, drives the solver pipeline, and archives the outcome in the
// blob store. Records are persisted through the service layer, so every
// lifecycle transition is audited and metered like any other record mutation.
package runs

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"sketchcore/internal/blob"
	"sketchcore/internal/core"
	"sketchcore/internal/engine"
	"sketchcore/internal/solver"
	"sketchcore/pkg/sketch"
)

// ErrQueueFull is returned when the run queue cannot accept another run.
var ErrQueueFull = errors.New("run queue full")

// RunScheduler queues inference runs and exposes run state to the HTTP layer.
type RunScheduler interface {
	EnqueueRun(ctx context.Context, sketchID string) (core.RunRecord, error)
	GetRun(id string) (core.RunRecord, bool)
	ListRuns() []core.RunRecord
	StageEvents(id string) []sketch.StageEvent
}

// Worker executes inference runs asynchronously. The jobs map tracks the
// solver of every in-flight run so status reads see the live stage log;
// finished runs answer from the summary persisted with their record.
type Worker struct {
	service     *core.Service
	engine      engine.Engine
	blobs       blob.Store
	workers     int
	parallelism int
	capacity    int

	queue chan runTask
	mu    sync.RWMutex
	jobs  map[string]*solver.InferenceSolver

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type runTask struct {
	id string
}

// Option configures a worker at construction.
type Option func(*Worker)

// WithWorkers sets how many runs execute concurrently.
func WithWorkers(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithParallelism sets the per-run solver worker count.
func WithParallelism(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.parallelism = n
		}
	}
}

// WithQueueCapacity bounds how many runs may wait in the queue.
func WithQueueCapacity(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// NewWorker constructs a run worker over the given collaborators.
func NewWorker(service *core.Service, eng engine.Engine, blobs blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		service:     service,
		engine:      eng,
		blobs:       blobs,
		workers:     1,
		parallelism: 1,
		capacity:    32,
		jobs:        make(map[string]*solver.InferenceSolver),
		entropy:     ulid.Monotonic(rand.Reader, 0),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.queue = make(chan runTask, w.capacity)
	return w
}

// Start launches the processing goroutines.
func (w *Worker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

// Stop signals the worker to halt and waits for in-flight runs to settle.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueRun persists a queued run for the given sketch and schedules it.
func (w *Worker) EnqueueRun(ctx context.Context, sketchID string) (core.RunRecord, error) {
	sketchID = strings.TrimSpace(sketchID)
	if sketchID == "" {
		return core.RunRecord{}, fmt.Errorf("%w: sketch id required", sketch.ErrValidation)
	}
	rec := core.RunRecord{
		Base:     sketch.Base{ID: w.newRunID()},
		SketchID: sketchID,
		Status:   core.RunQueued,
	}
	created, _, err := w.service.CreateRun(ctx, rec)
	if err != nil {
		return core.RunRecord{}, err
	}
	select {
	case w.queue <- runTask{id: created.ID}:
	default:
		// A rejected enqueue must not leave a queued record behind.
		_, _ = w.service.DeleteRun(ctx, created.ID)
		return core.RunRecord{}, ErrQueueFull
	}
	return created, nil
}

// GetRun returns the stored record of a run.
func (w *Worker) GetRun(id string) (core.RunRecord, bool) {
	return w.service.GetRun(id)
}

// ListRuns returns all stored run records.
func (w *Worker) ListRuns() []core.RunRecord {
	return w.service.ListRuns()
}

// StageEvents returns the stage log of a run. In-flight runs report the live
// solver log; finished runs report the log archived in their summary.
func (w *Worker) StageEvents(id string) []sketch.StageEvent {
	w.mu.RLock()
	sv, live := w.jobs[id]
	w.mu.RUnlock()
	if live {
		return stageEvents(sv.Statuses())
	}
	rec, ok := w.service.GetRun(id)
	if !ok || rec.Summary == nil {
		return nil
	}
	return append([]sketch.StageEvent(nil), rec.Summary.Stages...)
}

func (w *Worker) process(task runTask) {
	rec, ok := w.service.GetRun(task.id)
	if !ok {
		return
	}
	sketchRec, ok := w.service.GetSketch(rec.SketchID)
	if !ok {
		w.fail(task.id, fmt.Sprintf("sketch %q missing", rec.SketchID), nil)
		return
	}

	w.markRunning(task.id)

	// Consistency gates the run; an inconsistent sketch never reaches the
	// solver.
	if err := w.service.Checker().AssertConsistency(w.ctx, sketchRec.Sketch); err != nil {
		w.fail(task.id, err.Error(), nil)
		return
	}

	sv := solver.New(w.engine, solver.WithWorkers(w.parallelism))
	w.track(task.id, sv)
	defer w.untrack(task.id)

	results, err := sv.Run(w.ctx, sketchRec.Sketch)
	if err != nil {
		w.fail(task.id, err.Error(), sv.Statuses())
		return
	}
	w.complete(task.id, sketchRec.Sketch, results)
}

func (w *Worker) markRunning(id string) {
	_, _, _ = w.service.UpdateRun(w.ctx, id, func(r *core.RunRecord) error {
		r.Status = core.RunRunning
		return nil
	})
}

func (w *Worker) complete(id string, sk *core.Sketch, results solver.Results) {
	rec, ok := w.service.GetRun(id)
	if !ok {
		return
	}
	now := w.service.Now()
	summary := results.Summary()
	rec.Status = core.RunSucceeded
	rec.Error = ""
	rec.Summary = &summary
	rec.CompletedAt = &now

	key := ""
	if w.blobs != nil {
		archive, err := core.BuildRunArchive(rec, sk, results.Narrowings, now)
		if err != nil {
			w.fail(id, fmt.Sprintf("build archive: %v", err), results.Statuses)
			return
		}
		key = archiveKey(id)
		if _, err := w.blobs.Put(w.ctx, key, bytes.NewReader(archive), blob.PutOptions{
			ContentType: "application/zip",
			Metadata:    map[string]string{"sketch_id": rec.SketchID},
		}); err != nil {
			w.fail(id, fmt.Sprintf("store archive: %v", err), results.Statuses)
			return
		}
	}

	w.persistTerminal(id, func(r *core.RunRecord) {
		r.Status = core.RunSucceeded
		r.Error = ""
		r.Summary = &summary
		r.ArchiveKey = key
		r.CompletedAt = &now
	})
}

func (w *Worker) fail(id, reason string, events []solver.StatusEvent) {
	now := w.service.Now()
	var summary *core.RunSummary
	if len(events) > 0 {
		summary = &core.RunSummary{
			Duration: events[len(events)-1].At.Sub(events[0].At),
			Stages:   stageEvents(events),
		}
	}
	w.persistTerminal(id, func(r *core.RunRecord) {
		r.Status = core.RunFailed
		r.Error = reason
		r.Summary = summary
		r.CompletedAt = &now
	})
}

// persistTerminal commits a terminal transition. It runs on a background
// context so a worker shutdown cannot lose the final state of a run.
func (w *Worker) persistTerminal(id string, mutate func(*core.RunRecord)) {
	_, _, _ = w.service.UpdateRun(context.Background(), id, func(r *core.RunRecord) error {
		mutate(r)
		return nil
	})
}

func (w *Worker) track(id string, sv *solver.InferenceSolver) {
	w.mu.Lock()
	w.jobs[id] = sv
	w.mu.Unlock()
}

func (w *Worker) untrack(id string) {
	w.mu.Lock()
	delete(w.jobs, id)
	w.mu.Unlock()
}

// newRunID returns a fresh ULID. The entropy source is monotonic and not
// safe for concurrent use, hence the lock.
func (w *Worker) newRunID() string {
	w.idMu.Lock()
	defer w.idMu.Unlock()
	return ulid.MustNew(ulid.Now(), w.entropy).String()
}

// archiveKey is the blob key of a run's results archive.
func archiveKey(runID string) string {
	return "runs/" + runID + "/results.zip"
}

func stageEvents(events []solver.StatusEvent) []sketch.StageEvent {
	out := make([]sketch.StageEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, sketch.StageEvent{Stage: string(ev.Stage), Detail: ev.Detail, At: ev.At})
	}
	return out
}
