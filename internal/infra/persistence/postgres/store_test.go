package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sketchcore/pkg/sketch"
)

var stubSeq uint64

// stubConn records statements and keeps the state table in memory so the
// store can be exercised without a live server.
type stubConn struct {
	execs    []string
	state    map[string][]byte
	failPing bool
	failExec bool
}

func newStubDB(t *testing.T) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{state: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.state[bucket] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(query, "FROM state") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	buckets := make([]string, 0, len(c.state))
	for b := range c.state {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	rows := &stubRows{}
	for _, b := range buckets {
		rows.rows = append(rows.rows, [2]driver.Value{b, append([]byte(nil), c.state[b]...)})
	}
	return rows, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][2]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	dest[0] = r.rows[r.idx][0]
	dest[1] = r.rows[r.idx][1]
	r.idx++
	return nil
}

func fixtureSketch(t *testing.T) *sketch.Sketch {
	t.Helper()
	s := sketch.NewSketch()
	if err := s.Model().AddVariable("a", "a"); err != nil {
		t.Fatalf("add variable: %v", err)
	}
	return s
}

func TestNewStoreLoadsSnapshot(t *testing.T) {
	db, conn := newStubDB(t)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	sketches, err := json.Marshal(map[string]sketch.SketchRecord{
		"s1": {Base: sketch.Base{ID: "s1", CreatedAt: now, UpdatedAt: now}, Name: "seeded", Sketch: fixtureSketch(t)},
	})
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	runs, err := json.Marshal(map[string]sketch.RunRecord{
		"r1": {Base: sketch.Base{ID: "r1", CreatedAt: now, UpdatedAt: now}, SketchID: "s1", Status: sketch.RunFailed, Error: "engine error"},
	})
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	conn.state["sketches"] = sketches
	conn.state["runs"] = runs

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec, ok := store.GetSketch("s1")
	if !ok || rec.Name != "seeded" || rec.Sketch.Model().NumVariables() != 1 {
		t.Fatalf("unexpected loaded sketch: %+v ok=%t", rec, ok)
	}
	run, ok := store.GetRun("r1")
	if !ok || run.Status != sketch.RunFailed || run.Error != "engine error" {
		t.Fatalf("unexpected loaded run: %+v ok=%t", run, ok)
	}
	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.execs)
	}
}

func TestRunInTransactionPersistsState(t *testing.T) {
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx sketch.Transaction) error {
		_, e := tx.CreateSketch(sketch.SketchRecord{Base: sketch.Base{ID: "s1"}, Name: "persisted", Sketch: fixtureSketch(t)})
		return e
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	payload, ok := conn.state["sketches"]
	if !ok {
		t.Fatalf("expected sketches bucket to be written")
	}
	var decoded map[string]sketch.SketchRecord
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode persisted bucket: %v", err)
	}
	if rec, ok := decoded["s1"]; !ok || rec.Name != "persisted" {
		t.Fatalf("unexpected persisted record: %+v ok=%t", rec, ok)
	}
	if _, ok := conn.state["runs"]; !ok {
		t.Fatalf("expected runs bucket to be written even when empty")
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := newStubDB(t)
	conn.failPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected ping error")
	} else if !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping postgres error, got %v", err)
	}
}

func TestNewStoreLoadInvalidJSON(t *testing.T) {
	db, conn := newStubDB(t)
	conn.state["runs"] = []byte("not-json")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected decode error")
	} else if !strings.Contains(err.Error(), "decode runs") {
		t.Fatalf("expected decode runs error, got %v", err)
	}
}

func TestPersistExecFailureSurfaces(t *testing.T) {
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.failExec = true
	if _, err := store.RunInTransaction(context.Background(), func(tx sketch.Transaction) error {
		_, e := tx.CreateSketch(sketch.SketchRecord{Base: sketch.Base{ID: "s1"}, Sketch: fixtureSketch(t)})
		return e
	}); err == nil {
		t.Fatalf("expected persist failure")
	} else if !strings.Contains(err.Error(), "upsert sketches") {
		t.Fatalf("expected upsert error, got %v", err)
	}
}
