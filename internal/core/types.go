// Package core wires the sketch domain to persistence, observability, and
// run bookkeeping. It exposes the service layer the CLI and HTTP adapters
// build on.
package core

import (
	"sketchcore/pkg/sketch"
)

// Exported aliases keep service signatures concise while still exposing the
// domain types from this package.
type (
	// Sketch is an alias of sketch.Sketch.
	Sketch = sketch.Sketch
	// SketchRecord is an alias of sketch.SketchRecord.
	SketchRecord = sketch.SketchRecord
	// RunRecord is an alias of sketch.RunRecord.
	RunRecord = sketch.RunRecord
	// RunSummary is an alias of sketch.RunSummary.
	RunSummary = sketch.RunSummary
	// RunStatus is an alias of sketch.RunStatus.
	RunStatus = sketch.RunStatus
	// Report is an alias of sketch.Report.
	Report = sketch.Report
	// Result is an alias of sketch.Result.
	Result = sketch.Result
	// Violation is an alias of sketch.Violation.
	Violation = sketch.Violation
	// Checker is an alias of sketch.Checker.
	Checker = sketch.Checker
	// Transaction is an alias of sketch.Transaction.
	Transaction = sketch.Transaction
	// TransactionView is an alias of sketch.TransactionView.
	TransactionView = sketch.TransactionView
	// PersistentStore is an alias of sketch.PersistentStore.
	PersistentStore = sketch.PersistentStore
)

// Run lifecycle states re-exported for callers of the service layer.
const (
	RunQueued    = sketch.RunQueued
	RunRunning   = sketch.RunRunning
	RunSucceeded = sketch.RunSucceeded
	RunFailed    = sketch.RunFailed
)
