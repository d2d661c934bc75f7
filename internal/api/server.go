package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kjannette/ape-dashboard/internal/dashboard"
	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/models"
	"github.com/kjannette/ape-dashboard/internal/pricing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxQueryLimit = 1000

// Dashboard is the controller surface the API drives.
type Dashboard interface {
	View() dashboard.View
	Positions() []models.Position
	CompletedTrades() []models.CompletedTrade
	SubmitTrade(ctx context.Context, in models.TradeInput) (*models.Trade, error)
	RefreshNow(ctx context.Context) error
	Refreshing() bool
	OnRender(fn func(dashboard.View)) func()
}

type TradeLister interface {
	List(ctx context.Context, limit int) ([]models.Trade, error)
}

type PriceAdmin interface {
	Status() []pricing.EntryStatus
	SetManualPrice(address string, price decimal.Decimal)
	SetProvider(p pricing.Provider)
	Provider() pricing.Provider
	Clear()
}

type PriceHistory interface {
	History(ctx context.Context, address string, limit int) ([]models.PricePoint, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Dashboard Dashboard
	Trades    TradeLister
	Prices    PriceAdmin
	History   PriceHistory
	DB        Pinger
	Keys      pricing.Keys
}

type Server struct {
	deps        Deps
	hub         *hub
	unsubscribe func()
	httpServer  *http.Server
	handler     http.Handler
	apiKey      string
	log         *zap.Logger
}

func NewServer(deps Deps, port int, apiKey, corsOrigin string) *Server {
	s := &Server{
		deps:   deps,
		hub:    newHub(),
		apiKey: apiKey,
		log:    logger.Named("api"),
	}
	s.unsubscribe = deps.Dashboard.OnRender(s.hub.publish)

	mux := http.NewServeMux()

	// Dashboard routes
	mux.HandleFunc("GET /v1/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	// Trade routes
	mux.HandleFunc("GET /v1/trades", s.handleListTrades)
	mux.HandleFunc("POST /v1/trades", s.handleSubmitTrade)
	mux.HandleFunc("GET /v1/trades/completed", s.handleCompletedTrades)
	mux.HandleFunc("GET /v1/positions", s.handlePositions)

	// Price routes
	mux.HandleFunc("GET /v1/prices/cache", s.handleCacheStatus)
	mux.HandleFunc("DELETE /v1/prices/cache", s.handleCacheClear)
	mux.HandleFunc("PUT /v1/prices/provider", s.handleSetProvider)
	mux.HandleFunc("PUT /v1/prices/{address}", s.handleManualPrice)
	mux.HandleFunc("GET /v1/prices/history/{address}", s.handlePriceHistory)

	// No auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = requestIDMiddleware(s.authMiddleware(corsMiddleware(mux, corsOrigin)), s.log)

	// no WriteTimeout: stream connections are long lived and set their own
	// write deadlines
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.log.Info("REST API server started",
		zap.String("addr", "http://localhost"+s.httpServer.Addr),
		zap.Bool("auth", s.apiKey != ""),
	)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		// browsers cannot set headers on a websocket handshake
		if auth == "" && r.URL.Path == "/v1/stream" {
			if tok := r.URL.Query().Get("token"); tok != "" {
				auth = "Bearer " + tok
			}
		}
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request with an X-Request-ID and logs it
// once it completes.
func requestIDMiddleware(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
