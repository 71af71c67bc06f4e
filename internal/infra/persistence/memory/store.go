// Package memory provides the canonical in-memory persistent store for
// sketch and run records. Persistence drivers that snapshot to durable
// backends embed this store and reuse its transactional semantics.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"sketchcore/pkg/sketch"
)

// Compile-time contract assertion.
var _ sketch.PersistentStore = (*Store)(nil)

type memoryState struct {
	sketches map[string]sketch.SketchRecord
	runs     map[string]sketch.RunRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Sketches map[string]sketch.SketchRecord `json:"sketches"`
	Runs     map[string]sketch.RunRecord    `json:"runs"`
}

func newMemoryState() memoryState {
	return memoryState{
		sketches: make(map[string]sketch.SketchRecord),
		runs:     make(map[string]sketch.RunRecord),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.sketches {
		cloned.sketches[k] = cloneSketchRecord(v)
	}
	for k, v := range s.runs {
		cloned.runs[k] = cloneRunRecord(v)
	}
	return cloned
}

func cloneSketchRecord(rec sketch.SketchRecord) sketch.SketchRecord {
	cp := rec
	if rec.Sketch != nil {
		cp.Sketch = rec.Sketch.Copy()
	}
	return cp
}

func cloneRunRecord(rec sketch.RunRecord) sketch.RunRecord {
	cp := rec
	if rec.Summary != nil {
		summary := *rec.Summary
		summary.Stages = append([]sketch.StageEvent(nil), rec.Summary.Stages...)
		cp.Summary = &summary
	}
	if rec.CompletedAt != nil {
		at := *rec.CompletedAt
		cp.CompletedAt = &at
	}
	return cp
}

// Store is an in-memory transactional store. Every transaction works on a
// deep copy of the state; the copy replaces the live state only when the
// transaction function returns nil.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	checker *sketch.Checker
	nowFn   func() time.Time
}

// NewStore constructs an in-memory store. A nil checker falls back to the
// default consistency checker.
func NewStore(checker *sketch.Checker) *Store {
	if checker == nil {
		checker = sketch.DefaultChecker()
	}
	return &Store{
		state:   newMemoryState(),
		checker: checker,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Checker exposes the configured consistency checker.
func (s *Store) Checker() *sketch.Checker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checker
}

// NowFunc returns the time provider used for record timestamps.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Sketches: make(map[string]sketch.SketchRecord, len(s.state.sketches)),
		Runs:     make(map[string]sketch.RunRecord, len(s.state.runs)),
	}
	for k, v := range s.state.sketches {
		snapshot.Sketches[k] = cloneSketchRecord(v)
	}
	for k, v := range s.state.runs {
		snapshot.Runs[k] = cloneRunRecord(v)
	}
	return snapshot
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Sketches {
		state.sketches[k] = cloneSketchRecord(v)
	}
	for k, v := range snapshot.Runs {
		state.runs[k] = cloneRunRecord(v)
	}
	s.state = state
}

type transaction struct {
	store *Store
	state memoryState
	dirty map[string]struct{}
	now   time.Time
}

type transactionView struct {
	state *memoryState
}

// RunInTransaction executes fn within a transactional copy of the store
// state. After fn succeeds the consistency checker runs over every sketch
// the transaction touched; its findings come back as an advisory Result and
// never block the commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx sketch.Transaction) error) (sketch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		dirty: make(map[string]struct{}),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return sketch.Result{}, err
	}

	result, err := s.adviseConsistency(ctx, tx)
	if err != nil {
		return sketch.Result{}, err
	}

	s.state = tx.state
	return result, nil
}

func (s *Store) adviseConsistency(ctx context.Context, tx *transaction) (sketch.Result, error) {
	var result sketch.Result
	if s.checker == nil {
		return result, nil
	}
	ids := make([]string, 0, len(tx.dirty))
	for id := range tx.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec, ok := tx.state.sketches[id]
		if !ok || rec.Sketch == nil {
			continue
		}
		report, err := s.checker.Run(ctx, rec.Sketch)
		if err != nil {
			return sketch.Result{}, fmt.Errorf("check sketch %q: %w", id, err)
		}
		result = result.Merge(sketch.Result{Violations: sketch.ReportViolations(id, report)})
	}
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(view sketch.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(&transactionView{state: &snapshot})
}

// GetSketch retrieves a committed sketch record by ID.
func (s *Store) GetSketch(id string) (sketch.SketchRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.sketches[id]
	if !ok {
		return sketch.SketchRecord{}, false
	}
	return cloneSketchRecord(rec), true
}

// ListSketches returns all committed sketch records ordered by creation
// time, then ID.
func (s *Store) ListSketches() []sketch.SketchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sketch.SketchRecord, 0, len(s.state.sketches))
	for _, rec := range s.state.sketches {
		out = append(out, cloneSketchRecord(rec))
	}
	sortSketchRecords(out)
	return out
}

// GetRun retrieves a committed run record by ID.
func (s *Store) GetRun(id string) (sketch.RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.runs[id]
	if !ok {
		return sketch.RunRecord{}, false
	}
	return cloneRunRecord(rec), true
}

// ListRuns returns all committed run records ordered by creation time,
// then ID.
func (s *Store) ListRuns() []sketch.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sketch.RunRecord, 0, len(s.state.runs))
	for _, rec := range s.state.runs {
		out = append(out, cloneRunRecord(rec))
	}
	sortRunRecords(out)
	return out
}

func sortSketchRecords(recs []sketch.SketchRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func sortRunRecords(recs []sketch.RunRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

// Snapshot exposes a read-only view of the transactional state.
func (tx *transaction) Snapshot() sketch.TransactionView {
	return &transactionView{state: &tx.state}
}

// CreateSketch stores a new sketch record within the transaction.
func (tx *transaction) CreateSketch(rec sketch.SketchRecord) (sketch.SketchRecord, error) {
	if rec.ID == "" {
		rec.ID = tx.store.newID()
	}
	if _, exists := tx.state.sketches[rec.ID]; exists {
		return sketch.SketchRecord{}, fmt.Errorf("sketch %q already exists", rec.ID)
	}
	if rec.Sketch == nil {
		return sketch.SketchRecord{}, fmt.Errorf("sketch %q has no payload", rec.ID)
	}
	rec.CreatedAt = tx.now
	rec.UpdatedAt = tx.now
	tx.state.sketches[rec.ID] = cloneSketchRecord(rec)
	tx.dirty[rec.ID] = struct{}{}
	return cloneSketchRecord(rec), nil
}

// UpdateSketch mutates a sketch record using the provided mutator.
func (tx *transaction) UpdateSketch(id string, mutator func(*sketch.SketchRecord) error) (sketch.SketchRecord, error) {
	current, ok := tx.state.sketches[id]
	if !ok {
		return sketch.SketchRecord{}, fmt.Errorf("%w: sketch %q", sketch.ErrNotFound, id)
	}
	working := cloneSketchRecord(current)
	if err := mutator(&working); err != nil {
		return sketch.SketchRecord{}, err
	}
	working.ID = id
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = tx.now
	if working.Sketch == nil {
		return sketch.SketchRecord{}, fmt.Errorf("sketch %q has no payload", id)
	}
	tx.state.sketches[id] = cloneSketchRecord(working)
	tx.dirty[id] = struct{}{}
	return cloneSketchRecord(working), nil
}

// DeleteSketch removes a sketch record and all runs that reference it.
func (tx *transaction) DeleteSketch(id string) error {
	if _, ok := tx.state.sketches[id]; !ok {
		return fmt.Errorf("%w: sketch %q", sketch.ErrNotFound, id)
	}
	delete(tx.state.sketches, id)
	delete(tx.dirty, id)
	for runID, run := range tx.state.runs {
		if run.SketchID == id {
			delete(tx.state.runs, runID)
		}
	}
	return nil
}

// CreateRun stores a new run record within the transaction.
func (tx *transaction) CreateRun(rec sketch.RunRecord) (sketch.RunRecord, error) {
	if rec.ID == "" {
		rec.ID = tx.store.newID()
	}
	if _, exists := tx.state.runs[rec.ID]; exists {
		return sketch.RunRecord{}, fmt.Errorf("run %q already exists", rec.ID)
	}
	if _, ok := tx.state.sketches[rec.SketchID]; !ok {
		return sketch.RunRecord{}, fmt.Errorf("%w: sketch %q", sketch.ErrNotFound, rec.SketchID)
	}
	if rec.Status == "" {
		rec.Status = sketch.RunQueued
	}
	rec.CreatedAt = tx.now
	rec.UpdatedAt = tx.now
	tx.state.runs[rec.ID] = cloneRunRecord(rec)
	return cloneRunRecord(rec), nil
}

// UpdateRun mutates a run record using the provided mutator.
func (tx *transaction) UpdateRun(id string, mutator func(*sketch.RunRecord) error) (sketch.RunRecord, error) {
	current, ok := tx.state.runs[id]
	if !ok {
		return sketch.RunRecord{}, fmt.Errorf("%w: run %q", sketch.ErrNotFound, id)
	}
	working := cloneRunRecord(current)
	if err := mutator(&working); err != nil {
		return sketch.RunRecord{}, err
	}
	working.ID = id
	working.CreatedAt = current.CreatedAt
	working.SketchID = current.SketchID
	working.UpdatedAt = tx.now
	tx.state.runs[id] = cloneRunRecord(working)
	return cloneRunRecord(working), nil
}

// DeleteRun removes a run record.
func (tx *transaction) DeleteRun(id string) error {
	if _, ok := tx.state.runs[id]; !ok {
		return fmt.Errorf("%w: run %q", sketch.ErrNotFound, id)
	}
	delete(tx.state.runs, id)
	return nil
}

// FindSketch retrieves a sketch record from the transaction state.
func (tx *transaction) FindSketch(id string) (sketch.SketchRecord, bool) {
	rec, ok := tx.state.sketches[id]
	if !ok {
		return sketch.SketchRecord{}, false
	}
	return cloneSketchRecord(rec), true
}

// FindRun retrieves a run record from the transaction state.
func (tx *transaction) FindRun(id string) (sketch.RunRecord, bool) {
	rec, ok := tx.state.runs[id]
	if !ok {
		return sketch.RunRecord{}, false
	}
	return cloneRunRecord(rec), true
}

// ListSketches returns all sketch records in the view ordered by creation
// time, then ID.
func (v *transactionView) ListSketches() []sketch.SketchRecord {
	out := make([]sketch.SketchRecord, 0, len(v.state.sketches))
	for _, rec := range v.state.sketches {
		out = append(out, cloneSketchRecord(rec))
	}
	sortSketchRecords(out)
	return out
}

// ListRuns returns all run records in the view ordered by creation time,
// then ID.
func (v *transactionView) ListRuns() []sketch.RunRecord {
	out := make([]sketch.RunRecord, 0, len(v.state.runs))
	for _, rec := range v.state.runs {
		out = append(out, cloneRunRecord(rec))
	}
	sortRunRecords(out)
	return out
}

// FindSketch retrieves a sketch record from the view.
func (v *transactionView) FindSketch(id string) (sketch.SketchRecord, bool) {
	rec, ok := v.state.sketches[id]
	if !ok {
		return sketch.SketchRecord{}, false
	}
	return cloneSketchRecord(rec), true
}

// FindRun retrieves a run record from the view.
func (v *transactionView) FindRun(id string) (sketch.RunRecord, bool) {
	rec, ok := v.state.runs[id]
	if !ok {
		return sketch.RunRecord{}, false
	}
	return cloneRunRecord(rec), true
}
