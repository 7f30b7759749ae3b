// Package http exposes the JSON API over the stdlib mux.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"spendsmart/internal/cache"
	"spendsmart/internal/core"
	"spendsmart/internal/importer"
	"spendsmart/internal/insights"
	"spendsmart/internal/log"
	"spendsmart/internal/services"
)

const (
	summaryCacheSize = 200
	summaryCacheTTL  = 5 * time.Minute
	cacheSweep       = 10 * time.Minute
)

// timeframes a summary or insight set can be cached under.
var knownTimeframes = []string{"week", "month", "quarter", "year"}

// Pinger is the readiness probe surface of the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	logger       *log.Logger
	db           Pinger
	transactions *services.TransactionService
	payments     *services.PaymentService
	insights     *insights.Service
	importer     *importer.Importer
	rateLimiter  *rateLimiter

	summaryCache *cache.LRUCache[core.SpendingSummary]
	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, logger *log.Logger, db Pinger, transactions *services.TransactionService, payments *services.PaymentService, insightSvc *insights.Service, imp *importer.Importer) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:       logger.WithComponent(log.ComponentHTTP),
		db:           db,
		transactions: transactions,
		payments:     payments,
		insights:     insightSvc,
		importer:     imp,
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRUCache[core.SpendingSummary](summaryCacheSize, summaryCacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(insightSvc.Cache())
	s.cacheManager.StartCleanup(cacheSweep)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("POST /api/transactions/bulk", s.withMiddleware(s.handleBulkCreate))
	mux.HandleFunc("GET /api/transactions/sample-statement", s.withMiddleware(s.handleSampleStatement))
	mux.HandleFunc("POST /api/transactions/import/{userID}", s.withMiddleware(s.handleImport))
	mux.HandleFunc("POST /api/transactions/generate/{userID}", s.withMiddleware(s.handleGenerateDemo))
	mux.HandleFunc("GET /api/transactions/{userID}", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("PATCH /api/transactions/{userID}/{id}/category", s.withMiddleware(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/transactions/{userID}/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/analytics/spending-summary/{userID}", s.withMiddleware(s.handleSpendingSummary))
	mux.HandleFunc("GET /api/analytics/spending-trends/{userID}", s.withMiddleware(s.handleSpendingTrends))

	mux.HandleFunc("POST /api/ai/insights/{userID}", s.withMiddleware(s.handleGenerateInsights))
	mux.HandleFunc("GET /api/ai/insights/{userID}", s.withMiddleware(s.handleListInsights))

	mux.HandleFunc("POST /api/payments/upi-intent", s.withMiddleware(s.handleCreateUPIIntent))
	mux.HandleFunc("POST /api/payments/callback/{transactionID}", s.withMiddleware(s.handlePaymentCallback))

	return s
}

// withMiddleware adds security headers, rate limiting, request ids, and
// request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

type requestIDKey struct{}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status := "ready"
	httpStatus := http.StatusOK

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":               status,
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
		"checks":               checks,
		"rate_limiter_clients": s.rateLimiter.activeClients(),
	})
}

// invalidateUser drops cached aggregates after the user's transactions
// change.
func (s *Server) invalidateUser(userID string) {
	for _, tf := range knownTimeframes {
		s.summaryCache.Delete(summaryKey(userID, tf))
		s.insights.Invalidate(userID, tf)
	}
}

func summaryKey(userID, timeframe string) string {
	return userID + "|" + timeframe
}

// Shutdown stops the background cleanup loops and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
