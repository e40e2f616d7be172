// Package server exposes tracing over HTTP and gRPC. Both transports share
// one Server: its limits can be hot-reloaded and every request is recorded
// in the audit log.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/ppiankov/pywiz/internal/audit"
	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/config"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/logx"
	"github.com/ppiankov/pywiz/internal/ratelimit"
	"github.com/ppiankov/pywiz/internal/tracer"
)

// Options configures a Server.
type Options struct {
	// ConfigPath is loaded when Config is nil, and re-read on reload.
	ConfigPath string
	// Config overrides the file on startup.
	Config *config.Config
	Logger *logx.Logger
	// Clock stamps events; tracer.MonotonicClock if nil.
	Clock tracer.Clock
}

// Request is one trace request from any transport.
type Request struct {
	Transport string
	Filename  string
	Code      string
}

// Run is the outcome of one request.
type Run struct {
	RequestID string
	Result    tracer.Result
	Outcome   string
}

// Server runs trace requests under the configured limits.
type Server struct {
	mu         sync.RWMutex
	cfg        *config.Config
	cfgHash    string
	configPath string

	auditLog *audit.Log
	limiter  *ratelimit.Limiter
	log      *logx.Logger
	clock    tracer.Clock

	grpcServer *grpc.Server
	httpServer *http.Server
}

// New loads configuration and opens the audit log.
func New(opts Options) (*Server, error) {
	cfg, hash := opts.Config, ""
	if cfg == nil {
		var err error
		cfg, hash, err = config.LoadWithHash(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var auditLog *audit.Log
	if cfg.Audit.Path != "" {
		var err error
		auditLog, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = logx.Stderr
	}

	s := &Server{
		cfg:        cfg,
		cfgHash:    hash,
		configPath: opts.ConfigPath,
		auditLog:   auditLog,
		limiter:    ratelimit.NewLimiter(cfg.Server.RateLimits),
		log:        log,
		clock:      opts.Clock,
	}

	var grpcOpts []grpc.ServerOption
	if cfg.Server.MaxBodyBytes > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxRecvMsgSize(int(cfg.Server.MaxBodyBytes)))
	}
	s.grpcServer = grpc.NewServer(grpcOpts...)
	RegisterTraceServiceServer(s.grpcServer, &traceService{srv: s})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Config returns the configuration currently in effect.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// RunTrace traces one program and records the request. The returned error
// is the tracer's: *lang.CompileError, *budget.ExceededError or an internal
// failure, or one wrapping ratelimit.ErrLimited. Run is never nil; it
// carries the request id and outcome even when nothing was traced.
func (s *Server) RunTrace(ctx context.Context, req Request) (*Run, error) {
	s.mu.RLock()
	limits := s.cfg.Limits
	cfgHash := s.cfgHash
	s.mu.RUnlock()

	run := &Run{RequestID: tracer.NewRequestID()}
	start := time.Now()
	if check := s.limiter.Allow(req.Transport, start); check.Exceeded {
		run.Outcome = audit.OutcomeRateLimited
		s.recordAudit(audit.Entry{
			RequestID:  run.RequestID,
			Transport:  req.Transport,
			CodeHash:   audit.HashCode(req.Code),
			CodeBytes:  len(req.Code),
			Outcome:    run.Outcome,
			Detail:     check.Reason,
			ConfigHash: cfgHash,
		})
		return run, check.Err()
	}
	res, err := tracer.Trace(ctx, req.Code, tracer.Options{
		Filename: req.Filename,
		Limits:   limits,
		Clock:    s.clock,
	})
	run.Result = res

	outcome, detail := classify(res, err)
	run.Outcome = outcome
	s.recordAudit(audit.Entry{
		RequestID:  run.RequestID,
		Transport:  req.Transport,
		CodeHash:   audit.HashCode(req.Code),
		CodeBytes:  len(req.Code),
		Steps:      len(res.Trace),
		Outcome:    outcome,
		Detail:     detail,
		DurationMS: time.Since(start).Milliseconds(),
		ConfigHash: cfgHash,
	})
	return run, err
}

func classify(res tracer.Result, err error) (outcome, detail string) {
	var ce *lang.CompileError
	var ee *budget.ExceededError
	switch {
	case errors.As(err, &ce):
		return audit.OutcomeCompileError, ce.Error()
	case errors.As(err, &ee):
		return audit.OutcomeBudgetExceeded, ee.Error()
	case err != nil:
		return audit.OutcomeError, err.Error()
	case res.Uncaught != nil:
		return audit.OutcomeException, res.Uncaught.Error()
	}
	return audit.OutcomeOK, ""
}

func (s *Server) recordAudit(e audit.Entry) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(e); err != nil {
		s.log.Warnf("audit record failed: %v", err)
	}
}

// ReloadConfig re-reads the config file and swaps limits, rate limits and
// origins.
// Listen addresses and the audit path only change on restart.
// Called by the hot-reloader on file change.
func (s *Server) ReloadConfig() error {
	cfg, hash, err := config.LoadWithHash(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	s.mu.Lock()
	next := *s.cfg
	next.Limits = cfg.Limits
	next.Server.AllowedOrigins = cfg.Server.AllowedOrigins
	next.Server.RateLimits = cfg.Server.RateLimits
	s.cfg = &next
	s.cfgHash = hash
	s.mu.Unlock()
	s.limiter.SetConfig(cfg.Server.RateLimits)
	return nil
}

// ServeGRPC serves gRPC on lis. Blocks until stopped.
func (s *Server) ServeGRPC(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// ServeHTTP serves the HTTP API on lis. Blocks until stopped.
func (s *Server) ServeHTTP(lis net.Listener) error {
	err := s.httpServer.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on the configured addresses and serves both transports
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.Config()
	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 2)
	if cfg.Server.GRPCPort > 0 {
		grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.GRPCPort, err)
		}
		go func() { errCh <- s.ServeGRPC(grpcLis) }()
	}
	go func() { errCh <- s.ServeHTTP(httpLis) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(shutdownCtx)
		return nil
	case err := <-errCh:
		s.grpcServer.Stop()
		s.httpServer.Close()
		return err
	}
}

// Stop gracefully shuts down both transports.
func (s *Server) Stop(ctx context.Context) error {
	s.grpcServer.GracefulStop()
	return s.httpServer.Shutdown(ctx)
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}
