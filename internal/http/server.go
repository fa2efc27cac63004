// Package http serves the expense commands as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// ExpenseCommands is satisfied by *services.ExpenseService.
type ExpenseCommands interface {
	AddExpense(ctx context.Context, in services.AddExpenseInput) (core.Expense, error)
	ListExpenses(ctx context.Context, f core.Filter) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ImportExpenses(ctx context.Context, rows []services.ImportRow) (services.ImportResult, error)
	Summary(ctx context.Context) (core.Summary, error)
	Tips(ctx context.Context) (string, error)
	Categorize(ctx context.Context, description string) (core.Category, error)
}

// ReadinessFunc reports whether dependencies are usable.
type ReadinessFunc func(ctx context.Context) error

type Options struct {
	// Ready backs /readyz. Nil means always ready.
	Ready ReadinessFunc
	// RateLimitPerMinute bounds calls to endpoints that reach the model.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	svc      ExpenseCommands
	ready    ReadinessFunc
	validate *validator.Validate
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	security securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, svc ExpenseCommands, opts Options) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:      svc,
		ready:    opts.Ready,
		validate: newValidator(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(extractClientIP),
	}

	limited := s.limiter.Middleware(extractClientIP, s.onRateLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)
	mux.Handle("POST /expenses/import", limited(http.HandlerFunc(s.handleImportExpenses)))

	mux.Handle("POST /categorize", limited(http.HandlerFunc(s.handleCategorize)))
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.Handle("GET /tips", limited(http.HandlerFunc(s.handleTips)))

	s.Handler = s.tracer.Middleware(s.withSecurity(mux))
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, extractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeErrorCode(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded, please try again later")
}

// Stats is a snapshot of the request counters.
type Stats struct {
	Requests           int64 `json:"requests"`
	ServerErrors       int64 `json:"server_errors"`
	LastResponseMicros int64 `json:"last_response_us"`
	RateLimited        int64 `json:"rate_limited"`
	RateLimitClients   int64 `json:"rate_limit_clients"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
}

func (s *Server) Stats() Stats {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	return Stats{
		Requests:           tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		LastResponseMicros: tm.LastResponseTime,
		RateLimited:        rm.Rejected,
		RateLimitClients:   rm.ClientCount,
		SuspiciousRequests: atomic.LoadInt64(&s.security.suspiciousRequests),
	}
}

// Shutdown gracefully shuts down the server and its background routines.
// The final counters are logged once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		s.limiter.Stop()

		st := s.Stats()
		slog.InfoContext(ctx, "HTTP server stopped",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldOperation, applog.OpShutdown,
			"requests", st.Requests,
			"server_errors", st.ServerErrors,
			"rate_limited", st.RateLimited,
			"suspicious_requests", st.SuspiciousRequests)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed",
				applog.FieldComponent, applog.ComponentHTTP,
				applog.FieldError, err)
			writeErrorCode(w, http.StatusServiceUnavailable, codeNotReady, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready", Stats: s.Stats()})
}

type readyResponse struct {
	Status string `json:"status"`
	Stats  Stats  `json:"stats"`
}
