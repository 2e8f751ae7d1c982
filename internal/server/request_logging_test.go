package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLoggingCarriesStoryIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env := newTestEnv(t, Options{Logger: logger})

	created := createStory(t, env, formFile{"a.png", pngBytes(t, 1)})
	buf.Reset()

	w := env.do(t, httptest.NewRequest(http.MethodGet, created.Photos[0].URL, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", w.Code)
	}
	line := buf.String()
	for _, want := range []string{
		`msg="story request"`,
		`route="GET /v1/stories/{id}/photos/{photo_id}"`,
		"story_id=" + created.ID,
		"photo_id=" + created.Photos[0].ID,
		"status=200",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in log line %q", want, line)
		}
	}

	buf.Reset()
	env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if strings.Contains(buf.String(), "story request") {
		t.Fatalf("health checks must not be logged: %q", buf.String())
	}
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &statusRecorder{ResponseWriter: rec}
	if _, err := rw.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	rw.WriteHeader(http.StatusTeapot)
	if rw.Status() != http.StatusOK || rw.bytes != 5 {
		t.Fatalf("unexpected status %d bytes %d", rw.Status(), rw.bytes)
	}
}
