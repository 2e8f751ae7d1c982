package server

import (
	"net/http"
	"time"
)

// statusRecorder captures the status and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withRequestLogging records request metrics and logs one line per story
// request: DEBUG normally, ERROR for 5xx.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		// The mux records the matched pattern and path values on r.
		s.metrics.HTTPRequest(r.Pattern, rw.Status(), elapsed)

		fields := []any{
			"method", r.Method,
			"route", routeLabel(r),
			"status", rw.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"response_bytes", rw.bytes,
		}
		if id := r.PathValue("id"); id != "" {
			fields = append(fields, "story_id", id)
		}
		if photoID := r.PathValue("photo_id"); photoID != "" {
			fields = append(fields, "photo_id", photoID)
		}
		if r.ContentLength > 0 {
			fields = append(fields, "request_bytes", r.ContentLength)
		}

		if rw.Status() >= 500 {
			s.log().Error("story request failed", append(fields, "remote_addr", r.RemoteAddr)...)
			return
		}
		s.log().Debug("story request", fields...)
	})
}

func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return r.Method + " " + r.URL.Path
	}
	return r.Pattern
}
