package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "tontine/internal/log"
	"tontine/internal/middleware/ratelimit"
	"tontine/internal/middleware/security"
	"tontine/internal/middleware/trace"
	"tontine/internal/services"
)

// Services are the engine components the API exposes.
type Services struct {
	Ledger    *services.LedgerService
	Meetings  *services.MeetingService
	Summaries *services.AnnualAggregator
	Payouts   *services.PayoutCalculator
	// Ready reports whether the store answers; nil means always ready.
	Ready func(ctx context.Context) error
}

// Options tune the middleware stack.
type Options struct {
	RateLimit      ratelimit.Config
	TrustedProxies []string
	Logger         *applog.Logger
}

type Server struct {
	http.Server
	svc     Services
	logger  *applog.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	started time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Default()
	}
	ips, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:     svc,
		logger:  logger.WithComponent(applog.ComponentHTTP),
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:  trace.NewMiddleware(ips.ClientIP, logger),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expected", s.handleExpected)
	mux.HandleFunc("POST /api/contributions", s.handleRecordPayment)
	mux.HandleFunc("DELETE /api/contributions/{id}", s.handleDeletePayment)
	mux.HandleFunc("GET /api/settlement", s.handleSettlement)
	mux.HandleFunc("POST /api/settlement/preview", s.handlePreview)

	mux.HandleFunc("GET /api/meetings/{id}/view", s.handleMeetingView)
	mux.HandleFunc("POST /api/meetings/{id}/transition", s.handleTransition)

	mux.HandleFunc("GET /api/periods/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/periods/{id}/payouts/{member}", s.handlePayout)

	limited := s.limiter.WritesOnly(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		NewResponse().Status(http.StatusTooManyRequests).
			JSON(ErrorBody{Error: "rate limit exceeded", Code: "rate_limited"}).Write(w)
	})(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(s.tracer.Middleware(limited)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK
	if s.svc.Ready != nil {
		if err := s.svc.Ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "failed"
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	m := s.tracer.GetMetrics()
	sc := s.svc.Summaries.Cache()
	cs := sc.Stats()
	NewResponse().Status(code).JSON(map[string]any{
		"status":        status,
		"checks":        checks,
		"requests":      m.TotalRequests,
		"server_errors": m.ServerErrors,
		"rate_limited":  s.limiter.Rejected(),
		"summary_cache": map[string]any{
			"size":   sc.Size(),
			"hits":   cs.Hits,
			"misses": cs.Misses,
		},
	}).Write(w)
}
