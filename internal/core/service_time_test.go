package core

import (
	"context"
	"testing"
	"time"

	"sketchcore/internal/infra/persistence/memory"
	"sketchcore/pkg/sketch"
)

// bareStore satisfies sketch.PersistentStore without exposing a checker or a
// time provider.
type bareStore struct{}

func (bareStore) RunInTransaction(context.Context, func(sketch.Transaction) error) (sketch.Result, error) {
	return sketch.Result{}, nil
}

func (bareStore) View(context.Context, func(sketch.TransactionView) error) error { return nil }

func (bareStore) GetSketch(string) (sketch.SketchRecord, bool) {
	return sketch.SketchRecord{}, false
}

func (bareStore) ListSketches() []sketch.SketchRecord { return nil }

func (bareStore) GetRun(string) (sketch.RunRecord, bool) {
	return sketch.RunRecord{}, false
}

func (bareStore) ListRuns() []sketch.RunRecord { return nil }

type providerStore struct {
	bareStore
	now func() time.Time
}

func (p providerStore) NowFunc() func() time.Time { return p.now }

func TestClockFuncNilUsesSystemUTC(t *testing.T) {
	var clock ClockFunc
	now := clock.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", now.Location())
	}
	if d := time.Since(now); d < 0 || d > 5*time.Second {
		t.Fatalf("expected current time, drift %v", d)
	}
}

func TestClockFuncDelegatesAndNormalizesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	fixed := time.Date(2024, 6, 1, 15, 0, 0, 0, zone)
	clock := ClockFunc(func() time.Time { return fixed })

	now := clock.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", now.Location())
	}
	if !now.Equal(fixed) {
		t.Fatalf("expected same instant, got %v want %v", now, fixed)
	}
}

func TestSelectNowFuncPrefersExplicitClock(t *testing.T) {
	storeTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clockTime := time.Date(2030, 5, 5, 12, 0, 0, 0, time.UTC)

	store := memory.NewStore(nil)
	store.SetNowFunc(func() time.Time { return storeTime })

	svc := NewService(store, WithClock(ClockFunc(func() time.Time { return clockTime })))
	if got := svc.Now(); !got.Equal(clockTime) {
		t.Fatalf("expected explicit clock %v, got %v", clockTime, got)
	}
}

func TestSelectNowFuncUsesStoreProvider(t *testing.T) {
	zone := time.FixedZone("UTC-7", -7*60*60)
	storeTime := time.Date(2024, 2, 2, 9, 0, 0, 0, zone)

	svc := NewService(providerStore{now: func() time.Time { return storeTime }})
	got := svc.Now()
	if !got.Equal(storeTime) {
		t.Fatalf("expected store instant %v, got %v", storeTime, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC normalization, got %v", got.Location())
	}
}

func TestSelectNowFuncFallsBackToSystemClock(t *testing.T) {
	svc := NewService(bareStore{})
	now := svc.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", now.Location())
	}
	if d := time.Since(now); d < 0 || d > 5*time.Second {
		t.Fatalf("expected current time, drift %v", d)
	}
}

func TestSelectNowFuncIgnoresNilStoreProvider(t *testing.T) {
	svc := NewService(providerStore{now: nil})
	now := svc.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", now.Location())
	}
	if d := time.Since(now); d < 0 || d > 5*time.Second {
		t.Fatalf("expected current time, drift %v", d)
	}
}

func TestExtractCheckerFallsBackToDefault(t *testing.T) {
	svc := NewService(bareStore{})
	if svc.Checker() == nil {
		t.Fatalf("expected default checker for stores without one")
	}

	withStore := NewService(memory.NewStore(nil))
	if withStore.Checker() == nil {
		t.Fatalf("expected checker extracted from memory store")
	}
	if withStore.Checker() != withStore.Store().(*memory.Store).Checker() {
		t.Fatalf("expected service checker to match store checker")
	}
}
