package core

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"sketchcore/internal/solver"
)

// runArchiveSummary is the report written to summary.json inside a results
// archive.
type runArchiveSummary struct {
	RunID      string             `json:"run_id"`
	SketchID   string             `json:"sketch_id"`
	Status     RunStatus          `json:"status"`
	Error      string             `json:"error,omitempty"`
	Summary    *RunSummary        `json:"summary,omitempty"`
	Narrowings []solver.Narrowing `json:"narrowings,omitempty"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// BuildRunArchive produces the zip archive persisted for a finished run:
// summary.json carries the outcome report (status log, candidate
// cardinality, duration, per-property narrowings) and sketch.json the
// canonical export of the sketch the run evaluated, so the run can be
// replicated.
func BuildRunArchive(run RunRecord, s *Sketch, narrowings []solver.Narrowing, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	summary := runArchiveSummary{
		RunID:      run.ID,
		SketchID:   run.SketchID,
		Status:     run.Status,
		Error:      run.Error,
		Summary:    run.Summary,
		Narrowings: narrowings,
		ArchivedAt: at.UTC(),
	}
	if err := writeZipJSON(zw, "summary.json", summary); err != nil {
		return nil, err
	}
	if s != nil {
		if err := writeZipJSON(zw, "sketch.json", s); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeZipJSON(zw *zip.Writer, name string, v any) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return nil
}
