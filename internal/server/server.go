package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/dae9999nam/Memory-Garden/internal/metrics"
	"github.com/dae9999nam/Memory-Garden/internal/story"
)

const (
	allowRemoteEnvKey = "MEMGARDEN_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	// Writes wait on narrative generation.
	writeTimeout    = 150 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second

	defaultMultipartMemory    = 32 << 20 // 32 MiB
	defaultMaxConcurrentStory = 4
	defaultMutationsPerSecond = 5
	defaultMutationBurst      = 10
)

// Options tunes a Server. Zero values select defaults.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	MultipartMemory int64
	// MaxConcurrentGenerations caps in-flight create and replace requests.
	MaxConcurrentGenerations int
	// RateLimit is the sustained mutation rate per second; negative disables.
	RateLimit float64
	Burst     int
}

// Server wraps HTTP handlers for the memgarden API.
type Server struct {
	addr    string
	service *story.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	gather  prometheus.Gatherer

	maxPhotos       int
	maxPhotoBytes   int64
	multipartMemory int64

	mutationLimiter   *rate.Limiter
	generationLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, service *story.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	multipartMemory := opts.MultipartMemory
	if multipartMemory <= 0 {
		multipartMemory = defaultMultipartMemory
	}
	concurrent := opts.MaxConcurrentGenerations
	if concurrent <= 0 {
		concurrent = defaultMaxConcurrentStory
	}

	var limiter *rate.Limiter
	switch {
	case opts.RateLimit < 0:
	case opts.RateLimit == 0:
		limiter = rate.NewLimiter(rate.Limit(defaultMutationsPerSecond), defaultMutationBurst)
	default:
		burst := opts.Burst
		if burst <= 0 {
			burst = defaultMutationBurst
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	s := &Server{
		addr:              addr,
		service:           service,
		logger:            logger,
		metrics:           opts.Metrics,
		gather:            opts.Gatherer,
		multipartMemory:   multipartMemory,
		mutationLimiter:   limiter,
		generationLimiter: make(chan struct{}, concurrent),
	}
	if service != nil {
		s.maxPhotos = service.MaxPhotos()
		s.maxPhotoBytes = service.MaxPhotoBytes()
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withRateLimit(s.routes()))
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
