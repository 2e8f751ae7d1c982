package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: 0.001, Burst: 1})

	first := env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/stories/missing", nil))
	if first.Code != http.StatusNotFound {
		t.Fatalf("first mutation: expected 404, got %d", first.Code)
	}

	second := env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/stories/missing", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second mutation: expected 429, got %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}
	if resp := decodeError(t, second); resp.ErrorCode != ErrCodeResourceExhausted {
		t.Fatalf("expected resource exhausted code, got %d", resp.ErrorCode)
	}

	for i := 0; i < 3; i++ {
		w := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/stories", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("read %d: expected 200, got %d", i, w.Code)
		}
	}

	metrics := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(metrics.Body.String(), "memgarden_http_rate_limited_total 1") {
		t.Fatal("expected rate limited counter to be exported")
	}
}

func TestGenerationLimiterRejectsWhenFull(t *testing.T) {
	env := newTestEnv(t, Options{MaxConcurrentGenerations: 1})
	env.srv.generationLimiter <- struct{}{}
	defer func() { <-env.srv.generationLimiter }()

	w := env.do(t, multipartRequest(t, http.MethodPost, "/v1/stories", lisbonFields, []formFile{{"a.png", pngBytes(t, 1)}}))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if env.gen.calls != 0 {
		t.Fatal("generator must not be called")
	}
}
