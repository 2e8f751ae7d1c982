package server

import (
	"bytes"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dae9999nam/Memory-Garden/internal/api"
	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
)

// ageBlobs backdates every stored blob past the default grace period.
func ageBlobs(t *testing.T, root string) {
	t.Helper()
	old := time.Now().Add(-2 * time.Hour)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.Chtimes(path, old, old)
	})
	if err != nil {
		t.Fatalf("age blobs: %v", err)
	}
}

func TestAdminGC(t *testing.T) {
	env := newTestEnv(t, Options{})
	created := createStory(t, env, formFile{"a.png", pngBytes(t, 1)})
	orphan, err := env.blobs.Put(t.Context(), bytes.NewReader([]byte("leftover")), blobstore.PutMetadata{})
	if err != nil {
		t.Fatalf("put orphan: %v", err)
	}
	ageBlobs(t, env.blobs.Root())

	w := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/admin/gc", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("dry run: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	dry := decodeBody[api.SweepResponse](t, w.Body)
	if !dry.DryRun || dry.Scanned != 2 || dry.Candidates != 1 || dry.Deleted != 0 {
		t.Fatalf("unexpected dry run %#v", dry)
	}

	w = env.do(t, httptest.NewRequest(http.MethodPost, "/v1/admin/gc?apply=true", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("apply without confirm: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/gc?apply=true", nil)
	req.Header.Set("X-Confirm", "true")
	w = env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("apply: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	applied := decodeBody[api.SweepResponse](t, w.Body)
	if applied.DryRun || applied.Deleted != 1 || applied.ReclaimedBytes != int64(len("leftover")) {
		t.Fatalf("unexpected apply result %#v", applied)
	}

	if _, err := env.blobs.Open(t.Context(), orphan.BlobID); err == nil {
		t.Fatal("orphan blob should be gone")
	}
	w = env.do(t, httptest.NewRequest(http.MethodGet, created.Photos[0].URL, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("referenced photo: expected 200, got %d", w.Code)
	}
}

func TestAdminGCRejectsBadDuration(t *testing.T) {
	env := newTestEnv(t, Options{})
	w := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/admin/gc?older_than=soon", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.ErrorCode != ErrCodeInvalidQuery {
		t.Fatalf("expected invalid query code, got %d", resp.ErrorCode)
	}
}

func TestAdminGCRejectsAgeBelowGracePeriod(t *testing.T) {
	env := newTestEnv(t, Options{})
	createStory(t, env, formFile{"a.png", pngBytes(t, 1)})

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/gc?apply=true&older_than=1ns", nil)
	req.Header.Set("X-Confirm", "true")
	w := env.do(t, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeError(t, w); resp.ErrorCode != ErrCodeInvalidQuery {
		t.Fatalf("expected invalid query code, got %d", resp.ErrorCode)
	}
	if n := countBlobs(t, env.blobs.Root()); n != 1 {
		t.Fatalf("expected the story blob to survive, found %d blobs", n)
	}
}

func countBlobs(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	if err != nil {
		t.Fatalf("walk blobs: %v", err)
	}
	return n
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	createStory(t, env, formFile{"a.png", pngBytes(t, 1)})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`memgarden_saga_total{saga="create",state="committed"} 1`,
		`memgarden_http_requests_total{route="POST /v1/stories",status="201"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
