package runs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sketchcore/internal/adapters/runs"
	"sketchcore/internal/blob"
	"sketchcore/internal/core"
	"sketchcore/internal/engine"
	"sketchcore/internal/solver"
	"sketchcore/pkg/sketch"
)

const annotatedFixture = "a -> b\n$b: a\n"

type sketchResponse struct {
	Sketch     core.SketchRecord `json:"sketch"`
	Violations []core.Violation  `json:"violations"`
}

type sketchListResponse struct {
	Sketches []core.SketchRecord `json:"sketches"`
}

type runResponse struct {
	Run    core.RunRecord      `json:"run"`
	Stages []sketch.StageEvent `json:"stages"`
}

type runListResponse struct {
	Runs []core.RunRecord `json:"runs"`
}

func setupHandler(t *testing.T) *runs.Handler {
	t.Helper()
	svc := core.NewInMemoryService(nil)
	blobs := blob.NewMemory()
	worker := runs.NewWorker(svc, engine.NewScripted(engine.Script{Colors: 2, Permissive: true}), blobs)
	worker.Start()
	t.Cleanup(func() {
		_ = worker.Stop(context.Background())
	})
	handler := runs.NewHandler(svc)
	handler.Runs = worker
	handler.Blobs = blobs
	return handler
}

func importSketch(t *testing.T, handler *runs.Handler) core.SketchRecord {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sketches/import?name=demo&filename=model.aeon", strings.NewReader(annotatedFixture))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected import status: %d (%s)", resp.Code, resp.Body.String())
	}
	var body sketchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	if body.Sketch.ID == "" {
		t.Fatalf("expected sketch id")
	}
	return body.Sketch
}

func TestHandlerImportExportRoundTrip(t *testing.T) {
	handler := setupHandler(t)
	rec := importSketch(t, handler)
	if rec.Name != "demo" {
		t.Fatalf("unexpected sketch name: %s", rec.Name)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/sketches", nil)
	listResp := httptest.NewRecorder()
	handler.ServeHTTP(listResp, listReq)
	if listResp.Code != http.StatusOK {
		t.Fatalf("unexpected list status: %d", listResp.Code)
	}
	var list sketchListResponse
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(list.Sketches) != 1 || list.Sketches[0].ID != rec.ID {
		t.Fatalf("unexpected sketch list: %+v", list.Sketches)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/sketches/"+rec.ID, nil)
	getResp := httptest.NewRecorder()
	handler.ServeHTTP(getResp, getReq)
	if getResp.Code != http.StatusOK {
		t.Fatalf("unexpected get status: %d", getResp.Code)
	}
	var got sketchResponse
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got.Sketch.ID != rec.ID || got.Sketch.Sketch == nil {
		t.Fatalf("unexpected sketch record: %+v", got.Sketch)
	}

	expReq := httptest.NewRequest(http.MethodGet, "/api/v1/sketches/"+rec.ID+"/export?format=annotated", nil)
	expResp := httptest.NewRecorder()
	handler.ServeHTTP(expResp, expReq)
	if expResp.Code != http.StatusOK {
		t.Fatalf("unexpected export status: %d (%s)", expResp.Code, expResp.Body.String())
	}
	if got := expResp.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected export content type: %s", got)
	}
	if want := fmt.Sprintf("attachment; filename=%q", rec.ID+".aeon"); expResp.Header().Get("Content-Disposition") != want {
		t.Fatalf("unexpected disposition: %s", expResp.Header().Get("Content-Disposition"))
	}
	exported := expResp.Body.String()
	if !strings.Contains(exported, "a -> b") || !strings.Contains(exported, "$b: a") {
		t.Fatalf("unexpected export payload:\n%s", exported)
	}
}

func TestHandlerImportContentTypeNegotiation(t *testing.T) {
	handler := setupHandler(t)
	rec := importSketch(t, handler)

	expReq := httptest.NewRequest(http.MethodGet, "/api/v1/sketches/"+rec.ID+"/export", nil)
	expResp := httptest.NewRecorder()
	handler.ServeHTTP(expResp, expReq)
	if expResp.Code != http.StatusOK {
		t.Fatalf("unexpected export status: %d", expResp.Code)
	}
	if got := expResp.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected export content type: %s", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sketches/import", bytes.NewReader(expResp.Body.Bytes()))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected import status: %d (%s)", resp.Code, resp.Body.String())
	}
	var body sketchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	if body.Sketch.ID == "" || body.Sketch.ID == rec.ID {
		t.Fatalf("expected a fresh sketch record, got %q", body.Sketch.ID)
	}
}

func TestHandlerImportRejectsBadInput(t *testing.T) {
	handler := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sketches/import?format=yaml", strings.NewReader(annotatedFixture))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sketches/import?filename=model.aeon", strings.NewReader("this is not a network"))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", resp.Code)
	}
}

func TestHandlerRunLifecycle(t *testing.T) {
	handler := setupHandler(t)
	rec := importSketch(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"sketch_id":"`+rec.ID+`"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("unexpected enqueue status: %d (%s)", resp.Code, resp.Body.String())
	}
	var created runResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode enqueue response: %v", err)
	}
	if created.Run.ID == "" || created.Run.Status != core.RunQueued {
		t.Fatalf("unexpected run record: %+v", created.Run)
	}

	var state runResponse
	deadline := time.Now().Add(2 * time.Second)
	for {
		pollReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+created.Run.ID, nil)
		pollResp := httptest.NewRecorder()
		handler.ServeHTTP(pollResp, pollReq)
		if pollResp.Code != http.StatusOK {
			t.Fatalf("unexpected poll status: %d", pollResp.Code)
		}
		state = runResponse{}
		if err := json.NewDecoder(pollResp.Body).Decode(&state); err != nil {
			t.Fatalf("decode poll response: %v", err)
		}
		if state.Run.Status == core.RunSucceeded {
			break
		}
		if state.Run.Status == core.RunFailed {
			t.Fatalf("run failed: %s", state.Run.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for run completion (status=%s)", state.Run.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(state.Stages) == 0 || state.Stages[len(state.Stages)-1].Stage != string(solver.StageFinished) {
		t.Fatalf("unexpected stage log: %+v", state.Stages)
	}
	if state.Run.ArchiveKey == "" {
		t.Fatalf("expected archive key on succeeded run")
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	listResp := httptest.NewRecorder()
	handler.ServeHTTP(listResp, listReq)
	if listResp.Code != http.StatusOK {
		t.Fatalf("unexpected list status: %d", listResp.Code)
	}
	var list runListResponse
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode run list: %v", err)
	}
	if len(list.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(list.Runs))
	}

	archReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+created.Run.ID+"/archive", nil)
	archResp := httptest.NewRecorder()
	handler.ServeHTTP(archResp, archReq)
	if archResp.Code != http.StatusOK {
		t.Fatalf("unexpected archive status: %d (%s)", archResp.Code, archResp.Body.String())
	}
	if got := archResp.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("unexpected archive content type: %s", got)
	}
	if !strings.Contains(archResp.Header().Get("Content-Disposition"), created.Run.ID+".zip") {
		t.Fatalf("unexpected disposition: %s", archResp.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(archResp.Body.Bytes(), []byte("PK")) {
		t.Fatalf("archive payload is not a zip")
	}
}

func TestHandlerEnqueueValidation(t *testing.T) {
	handler := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"sketch_id":"missing"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sketch, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.Code)
	}
}

func TestHandlerRunQueueFull(t *testing.T) {
	svc := core.NewInMemoryService(nil)
	// Never started: the first run occupies the only queue slot.
	worker := runs.NewWorker(svc, engine.NewScripted(engine.Script{Colors: 1}), nil, runs.WithQueueCapacity(1))
	handler := runs.NewHandler(svc)
	handler.Runs = worker
	rec := importSketch(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"sketch_id":"`+rec.ID+`"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("unexpected enqueue status: %d", resp.Code)
	}
	var created runResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode enqueue response: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"sketch_id":"`+rec.ID+`"}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for full queue, got %d", resp.Code)
	}

	archReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+created.Run.ID+"/archive", nil)
	archResp := httptest.NewRecorder()
	handler.ServeHTTP(archResp, archReq)
	if archResp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for pending archive, got %d", archResp.Code)
	}
}

func TestHandlerRunNotFound(t *testing.T) {
	handler := setupHandler(t)
	for _, url := range []string{"/api/v1/runs/unknown", "/api/v1/runs/unknown/archive", "/api/v1/sketches/unknown", "/api/v1/sketches/unknown/export"} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", url, resp.Code)
		}
	}
}

func TestHandlerWithoutScheduler(t *testing.T) {
	handler := runs.NewHandler(core.NewInMemoryService(nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without scheduler, got %d", resp.Code)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	handler := setupHandler(t)
	for _, tc := range []struct {
		method string
		url    string
	}{
		{http.MethodDelete, "/api/v1/runs"},
		{http.MethodPost, "/api/v1/sketches"},
		{http.MethodGet, "/api/v1/sketches/import"},
	} {
		req := httptest.NewRequest(tc.method, tc.url, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405 for %s %s, got %d", tc.method, tc.url, resp.Code)
		}
	}
}
