package server

import (
	"fmt"
	"net/http"
)

// withRateLimit applies the process-wide token bucket to mutating requests.
// Reads are never limited.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.mutationLimiter == nil || !isMutation(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.mutationLimiter.Allow() {
			s.metrics.RateLimited()
			w.Header().Set("Retry-After", "1")
			err := apiError{
				status:  http.StatusTooManyRequests,
				code:    "resource_exhausted",
				errCode: ErrCodeResourceExhausted,
				err:     fmt.Errorf("mutation rate limit exceeded"),
			}
			s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
