package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"sketchcore/internal/adapters/formats"
	"sketchcore/internal/blob"
	"sketchcore/internal/core"
	"sketchcore/pkg/sketch"
)

// maxImportBytes caps the request body of a sketch import.
const maxImportBytes = 8 << 20

const emptyBodySentinel = "EOF"

// Handler provides HTTP access to stored sketches and inference runs.
type Handler struct {
	Service *core.Service
	Runs    RunScheduler
	Blobs   blob.Store
}

// NewHandler constructs a sketch and run HTTP handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "sketch service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/runs" || strings.HasPrefix(path, "/api/v1/runs/"):
		if h.Runs == nil {
			http.NotFound(w, r)
			return
		}
		h.handleRuns(w, r, path)
	case path == "/api/v1/sketches" || strings.HasPrefix(path, "/api/v1/sketches/"):
		h.handleSketches(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/runs" {
		switch r.Method {
		case http.MethodPost:
			h.handleRunCreate(w, r)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"runs": h.Runs.ListRuns()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/runs/"), "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleRunGet(w, segments[0])
	case len(segments) == 2 && segments[1] == "archive":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleRunArchive(w, r, segments[0])
	default:
		http.NotFound(w, r)
	}
}

type runRequest struct {
	SketchID string `json:"sketch_id"`
}

func (h *Handler) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != emptyBodySentinel {
		writeError(w, http.StatusBadRequest, "invalid run request payload")
		return
	}
	rec, err := h.Runs.EnqueueRun(r.Context(), req.SketchID)
	if err != nil {
		writeError(w, enqueueStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run": rec})
}

// enqueueStatus maps an enqueue failure onto its HTTP status.
func enqueueStatus(err error) int {
	switch {
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, sketch.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) handleRunGet(w http.ResponseWriter, id string) {
	rec, ok := h.Runs.GetRun(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": rec, "stages": h.Runs.StageEvents(id)})
}

func (h *Handler) handleRunArchive(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.Runs.GetRun(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if h.Blobs == nil || rec.ArchiveKey == "" {
		writeError(w, http.StatusNotFound, "run archive not available")
		return
	}
	info, payload, err := h.Blobs.Get(r.Context(), rec.ArchiveKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run archive not available")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer payload.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, payload)
}

func (h *Handler) handleSketches(w http.ResponseWriter, r *http.Request, path string) {
	switch path {
	case "/api/v1/sketches":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sketches": h.Service.ListSketches()})
		return
	case "/api/v1/sketches/import":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSketchImport(w, r)
		return
	}

	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/sketches/"), "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSketchGet(w, segments[0])
	case len(segments) == 2 && segments[1] == "export":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSketchExport(w, r, segments[0])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleSketchGet(w http.ResponseWriter, id string) {
	rec, ok := h.Service.GetSketch(id)
	if !ok {
		writeError(w, http.StatusNotFound, "sketch not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sketch": rec})
}

func (h *Handler) handleSketchImport(w http.ResponseWriter, r *http.Request) {
	format, err := negotiateImportFormat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read import payload: "+err.Error())
		return
	}
	imported, err := formats.Import(format, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, res, err := h.Service.CreateSketch(r.Context(), core.SketchRecord{
		Name:   importName(r),
		Sketch: imported,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sketch": rec, "violations": res.Violations})
}

func (h *Handler) handleSketchExport(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.Service.GetSketch(id)
	if !ok {
		writeError(w, http.StatusNotFound, "sketch not found")
		return
	}
	format := formats.FormatJSON
	if raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); raw != "" {
		format = formats.Format(raw)
		if !format.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported sketch format %q", raw))
			return
		}
	}
	payload, err := formats.Export(format, rec.Sketch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.MediaType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+format.Ext()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// negotiateImportFormat derives the wire format of an import request from
// the format query parameter, the filename query parameter or the
// Content-Type header, in that order. JSON is the fallback.
func negotiateImportFormat(r *http.Request) (formats.Format, error) {
	if raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); raw != "" {
		format := formats.Format(raw)
		if !format.Valid() {
			return "", fmt.Errorf("unsupported sketch format %q", raw)
		}
		return format, nil
	}
	if filename := strings.TrimSpace(r.URL.Query().Get("filename")); filename != "" {
		return formats.DetectPath(filename)
	}
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		return formats.DetectMediaType(contentType)
	}
	return formats.FormatJSON, nil
}

// importName picks the record name: the name query parameter when present,
// otherwise the stem of the filename parameter.
func importName(r *http.Request) string {
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		return name
	}
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		return ""
	}
	base := path.Base(filename)
	return strings.TrimSuffix(base, path.Ext(base))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
