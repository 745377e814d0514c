package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

// Store is the persistence surface the API handlers depend on.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*core.User, error)

	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, ownerID, id string) (*core.Category, error)
	ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, ownerID, id string) error

	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, ownerID, id string) (*core.Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, dir core.Direction) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, id string) error

	CreateTrip(ctx context.Context, t *core.Trip) error
	GetTrip(ctx context.Context, ownerID, id string) (*core.Trip, error)
	ListTrips(ctx context.Context, ownerID string) ([]core.Trip, error)
	UpdateTrip(ctx context.Context, t *core.Trip) error
	DeleteTrip(ctx context.Context, ownerID, id string) error

	GetReport(ctx context.Context, ownerID, id string) (*core.Report, error)
	ListReports(ctx context.Context, ownerID string) ([]core.Report, error)
	UpdateReport(ctx context.Context, rep *core.Report) error
	DeleteReport(ctx context.Context, ownerID, id string) error
}

type Server struct {
	http.Server

	store         Store
	authenticator *auth.PasswordAuthenticator
	tokens        *auth.JWTManager
	stats         *services.StatsService
	trips         *services.TripService
	dispatcher    *services.ReportDispatcher

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once

	// Stats responses are cached per owner. A generation counter bumped on
	// every write keys out stale entries; the LRU evicts them over time.
	statsCache   *cache.LRUCache[core.Aggregate]
	cacheManager *cache.Manager
	genMu        sync.Mutex
	statsGen     map[string]uint64
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store Store, authenticator *auth.PasswordAuthenticator, tokens *auth.JWTManager, stats *services.StatsService, trips *services.TripService, dispatcher *services.ReportDispatcher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:         store,
		authenticator: authenticator,
		tokens:        tokens,
		stats:         stats,
		trips:         trips,
		dispatcher:    dispatcher,
		rateLimiter:   newRateLimiter(),
		statsCache:    cache.NewLRUCache[core.Aggregate](256, 5*time.Minute),
		cacheManager:  cache.NewManager(),
		statsGen:      make(map[string]uint64),
	}
	s.cacheManager.Register(s.statsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/auth/register", s.withCommon(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withCommon(s.handleLogin))

	mux.HandleFunc("POST /api/categories", s.withAuth(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories", s.withAuth(s.handleListCategories))
	mux.HandleFunc("GET /api/categories/{id}", s.withAuth(s.handleGetCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.withAuth(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withAuth(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/transactions", s.withAuth(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.withAuth(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.withAuth(s.handleGetTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withAuth(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/trips", s.withAuth(s.handleCreateTrip))
	mux.HandleFunc("GET /api/trips", s.withAuth(s.handleListTrips))
	// The literal segment takes precedence over /api/trips/{id}.
	mux.HandleFunc("GET /api/trips/rollup", s.withAuth(s.handleTripRollups))
	mux.HandleFunc("GET /api/trips/{id}", s.withAuth(s.handleGetTrip))
	mux.HandleFunc("PUT /api/trips/{id}", s.withAuth(s.handleUpdateTrip))
	mux.HandleFunc("DELETE /api/trips/{id}", s.withAuth(s.handleDeleteTrip))
	mux.HandleFunc("GET /api/trips/{id}/rollup", s.withAuth(s.handleTripRollup))

	mux.HandleFunc("GET /api/stats", s.withAuth(s.handleStats))

	mux.HandleFunc("POST /api/reports", s.withAuth(s.handleSaveReport))
	mux.HandleFunc("GET /api/reports", s.withAuth(s.handleListReports))
	mux.HandleFunc("GET /api/reports/{id}", s.withAuth(s.handleGetReport))
	mux.HandleFunc("PUT /api/reports/{id}", s.withAuth(s.handleRenameReport))
	mux.HandleFunc("DELETE /api/reports/{id}", s.withAuth(s.handleDeleteReport))
	mux.HandleFunc("POST /api/reports/dispatch", s.withAuth(s.handleDispatchReports))

	return s
}

// Shutdown stops the server and its background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withCommon adds security headers, rate limiting, request logging and
// latency metrics to a handler.
func (s *Server) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientAddr(r)
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		reqLog := applog.FromContext(ctx).With(applog.FieldRequestID, requestID)
		reqLog.InfoContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			reqLog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Observe(duration.Seconds())
		reqLog.InfoContext(ctx, "Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds())
	}
}

// withAuth wraps withCommon and requires a valid bearer token. The
// authenticated owner id is stored on the request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return s.withCommon(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.Validate(bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	})
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ownerIDKey   contextKey = "owner_id"
)

// ownerID returns the authenticated user id set by withAuth.
func ownerID(r *http.Request) string {
	id, _ := r.Context().Value(ownerIDKey).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
