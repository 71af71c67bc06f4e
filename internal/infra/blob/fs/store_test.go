package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sketchcore/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	info, err := store.Put(ctx, "runs/run-1/archive.zip", strings.NewReader("hello world"), core.PutOptions{
		ContentType: "application/zip",
		Metadata:    map[string]string{"sketch_id": "sk-1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("hello world")) {
		t.Fatalf("unexpected size %d", info.Size)
	}
	if info.ETag != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("unexpected etag %s", info.ETag)
	}
	if info.Metadata["sketch_id"] != "sk-1" {
		t.Fatalf("missing metadata: %+v", info.Metadata)
	}

	got, rc, err := store.Get(ctx, "runs/run-1/archive.zip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(payload) != "hello world" {
		t.Fatalf("unexpected payload %q", payload)
	}
	if got.ContentType != "application/zip" || got.ETag != info.ETag {
		t.Fatalf("metadata mismatch: %+v", got)
	}

	head, err := store.Head(ctx, "runs/run-1/archive.zip")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != info.Size || head.ETag != info.ETag {
		t.Fatalf("head mismatch: %+v", head)
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Put(ctx, "a.txt", strings.NewReader("first"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "a.txt", strings.NewReader("second"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only rejection")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("unexpected error: %v", err)
	}

	_, rc, err := store.Get(ctx, "a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	payload, _ := io.ReadAll(rc)
	if string(payload) != "first" {
		t.Fatalf("expected original payload, got %q", payload)
	}
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"", "  ", "/abs", "../escape", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Get(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"runs/b.zip", "runs/a.zip", "sketches/s.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "runs/a.zip" || infos[1].Key != "runs/b.zip" {
		t.Fatalf("unexpected listing %+v", infos)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(all))
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Put(ctx, "gone.txt", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := store.Delete(ctx, "gone.txt")
	if err != nil || !existed {
		t.Fatalf("expected delete of existing blob, existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "gone.txt")
	if err != nil || existed {
		t.Fatalf("expected idempotent delete, existed=%v err=%v", existed, err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "gone.txt.meta")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected sidecar removal, err=%v", err)
	}
}

func TestPresignURLOnlySupportsGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	u, err := store.PresignURL(ctx, "runs/r.zip", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(u, "runs/r.zip") {
		t.Fatalf("unexpected url %s", u)
	}
	if _, err := store.PresignURL(ctx, "runs/r.zip", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}

func TestDriverIdentifier(t *testing.T) {
	store := newTestStore(t)
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
