package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes a URL handler over HTTP so that processes without an OS level
URL scheme registration can exchange walletlink URLs.

Signer side:
  POST /open { "url": "trust://sign-message?..." }
    - the URL is passed to the dispatcher
    - 200 { "handled": true } once the signer was invoked
    - 404 { "handled": false } when the URL names no known command or fails to decode

Requester side:
  POST /open { "url": "app://sign-message?result=..." }
    - the URL is offered to the pending commands
    - same status codes as above

  GET /health
    - 200 { "status": "ok" }

  GET /metrics
    - prometheus exposition, when a gatherer is configured

Requests beyond the configured rate are rejected with 429.
*/

// HandlerFunc handles an opened URL and reports whether it was recognised
type HandlerFunc func(ctx context.Context, u *url.URL) bool

type Config struct {
	// Host to bind. Empty binds all interfaces.
	Host string
	// Port to listen on. Zero picks a free port.
	Port int
	// RateLimit is the sustained number of open requests per second. Zero disables limiting.
	RateLimit float64
	// Burst is the number of requests allowed above RateLimit
	Burst int
	// Metrics counts served requests. Optional.
	Metrics *metrics.Metrics
	// Gatherer is served on /metrics when set
	Gatherer prometheus.Gatherer
}

type Server struct {
	handler    HandlerFunc
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(cfg *Config, handler HandlerFunc, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Server{
		handler: handler,
		metrics: cfg.Metrics,
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/open", s.instrument("/open", s.handleOpen))
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		s.logger.Sugar().Infow("Starting bridge server", "address", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Sugar().Errorw("Bridge server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
