// Package server is the validator's HTTP surface: the index/status routes,
// transaction lookup, the cosigner sign endpoint, the leader receipt
// endpoint, /health, /metrics, and a test-only state override route.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bundlr-network/validator/pkg/cosign"
	"github.com/bundlr-network/validator/pkg/database"
	"github.com/bundlr-network/validator/pkg/keymanager"
	"github.com/bundlr-network/validator/pkg/metrics"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

// shutdownDrain bounds how long Shutdown waits for in-flight requests to
// finish before forcibly closing listeners.
const shutdownDrain = 5 * time.Second

// Server hosts the validator's HTTP API over a *http.Server.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// Config carries everything the route handlers need.
type Config struct {
	ListenAddr       string
	Version          string
	Keys             keymanager.KeyManager
	State            *validatorstate.State
	Txs              *database.TransactionRepository
	DB               *database.Client
	Cosign           CosignService
	EnableTestRoutes bool
}

// CosignService is the subset of pkg/cosign.Service the sign and leader
// routes depend on, kept as an interface here so server tests can
// substitute a stub.
type CosignService interface {
	Cosign(ctx context.Context, req cosign.Request) (string, error)
	VerifyQuorum(req cosign.LeaderRequest) (int, error)
}

// New builds a Server wired to cfg's handlers but does not start listening.
func New(cfg Config) *Server {
	logger := log.New(log.Writer(), "[Server] ", log.LstdFlags)

	mux := http.NewServeMux()
	index := &indexHandlers{cfg: cfg}
	tx := &txHandlers{txs: cfg.Txs, logger: logger}
	cosign := &cosignHandlers{cosign: cfg.Cosign, state: cfg.State, logger: logger}
	status := &statusHandlers{cfg: cfg}
	health := &healthHandlers{db: cfg.DB, logger: logger}

	mux.HandleFunc("GET /{$}", index.handleIndex)
	mux.HandleFunc("GET /tx/{id}", tx.handleGetTx)
	mux.HandleFunc("POST /cosigner/sign", cosign.handleSign)
	mux.HandleFunc("POST /leader/tx", cosign.handleLeaderTx)
	mux.HandleFunc("GET /status", status.handleStatus)
	mux.HandleFunc("GET /health", health.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	if cfg.EnableTestRoutes {
		test := &testStateHandlers{state: cfg.State}
		mux.HandleFunc("POST /test/state", test.handleSetState)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: logRequests(logger, mux),
		},
		logger: logger,
	}
}

// Start runs the server until it errors or Shutdown is called. It never
// returns http.ErrServerClosed as an error.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests for up to shutdownDrain before closing.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownDrain)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
		metrics.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
