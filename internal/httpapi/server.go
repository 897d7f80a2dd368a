// Package httpapi exposes the read-only operator inspection surface: the
// current per-symbol snapshot and the latest selector decision, plus a
// Prometheus /metrics endpoint. Adapted from the teacher's
// internal/api/server.go: the mux.Router-plus-cors-plus-http.Server
// Start/Stop idiom survives; the WebSocket hub and backtest-control
// routes have no counterpart in a live-only core and are dropped.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// SnapshotSource is the read surface the server queries; implemented by
// *snapshot.Store.
type SnapshotSource interface {
	Get(symbol string) (types.Snapshot, bool)
	Symbols() []string
}

// Metrics are the Prometheus collectors shared across the core's
// components; Server only registers and serves them, it does not own
// their values.
type Metrics struct {
	EventsProcessed prometheus.Counter
	SignalsEmitted  prometheus.Counter
	OrdersPlaced    prometheus.Counter
	RiskDenials     prometheus.Counter
	SelectorLatency prometheus.Histogram
}

// NewMetrics registers the core's Prometheus collectors against the
// default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mia_events_processed_total",
			Help: "Unified event-stream lines applied to the market snapshot.",
		}),
		SignalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mia_pattern_signals_total",
			Help: "Selector decisions that carried a winning pattern signal.",
		}),
		OrdersPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mia_orders_placed_total",
			Help: "Orders sent to the exchange bridge, paper or live.",
		}),
		RiskDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mia_risk_denials_total",
			Help: "Decisions blocked by the risk gate.",
		}),
		SelectorLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mia_selector_tick_seconds",
			Help:    "Wall-clock time of one StrategySelector.Analyze call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// DecisionSource returns the latest decision recorded for a symbol, if
// any; implemented by a small in-memory ring the dispatcher updates.
type DecisionSource interface {
	Last(symbol string) (types.Decision, bool)
}

// Server is the inspection HTTP server.
type Server struct {
	mu         sync.Mutex
	logger     *zap.Logger
	addr       string
	router     *mux.Router
	httpServer *http.Server
	store      SnapshotSource
	decisions  DecisionSource
}

// New builds a Server; the caller still must call Start.
func New(logger *zap.Logger, addr string, store SnapshotSource, decisions DecisionSource) *Server {
	s := &Server{
		logger:    logger.Named("httpapi"),
		addr:      addr,
		router:    mux.NewRouter(),
		store:     store,
		decisions: decisions,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/symbols", s.handleSymbols).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshots/{symbol}", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/decisions/{symbol}", s.handleDecision).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Start serves until the process is stopped; it blocks, matching the
// teacher's ListenAndServe-in-a-goroutine convention at the call site.
func (s *Server) Start() error {
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.router)

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting inspection HTTP server", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"symbols": s.store.Symbols()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	snap, ok := s.store.Get(symbol)
	if !ok {
		http.Error(w, "unknown symbol", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	decision, ok := s.decisions.Last(symbol)
	if !ok {
		http.Error(w, "no decision recorded yet", http.StatusNotFound)
		return
	}
	writeJSON(w, decision)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
