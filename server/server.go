// Package server exposes a read-only HTTP view of protocol state for
// dashboards and keepers looking for liquidatable vaults.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stablechain/core"
	"stablechain/crypto"
	"stablechain/native/stablecoin"
	"stablechain/storage/eventlog"
)

// Backend is the slice of the processor the server reads from.
type Backend interface {
	Config() (stablecoin.ProtocolConfig, error)
	VaultStatus(ctx context.Context, owner crypto.Address, feedID string) (stablecoin.VaultStatus, error)
	Balance(asset string, addr crypto.Address) (*big.Int, error)
}

// EventQuery serves vault history when an event store is configured.
type EventQuery interface {
	ByOwner(ctx context.Context, owner string, limit int) ([]eventlog.Record, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Backend Backend
	Events  EventQuery
	Logger  *slog.Logger
	Metrics http.Handler
}

type Server struct {
	backend Backend
	events  EventQuery
	logger  *slog.Logger
	metrics http.Handler
	router  http.Handler
}

func New(cfg Config) *Server {
	s := &Server{
		backend: cfg.Backend,
		events:  cfg.Events,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "stablechain.status")
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	r.Route("/v1", func(api chi.Router) {
		api.Get("/config", s.handleConfig)
		api.Get("/vaults/{owner}", s.handleVault)
		api.Get("/vaults/{owner}/events", s.handleVaultEvents)
		api.Get("/balances/{asset}/{address}", s.handleBalance)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains for up to five
// seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch stablecoin.CategoryOf(err) {
	case stablecoin.CategoryOracle:
		status = http.StatusServiceUnavailable
	case stablecoin.CategoryConfig:
		if errors.Is(err, stablecoin.ErrNotInitialized) {
			status = http.StatusNotFound
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("status request failed", "path", r.URL.Path, "error", err.Error())
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: stablecoin.CodeOf(err), Retryable: stablecoin.Retryable(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.backend.Config()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.NewConfigView(cfg))
}

func parseAddress(w http.ResponseWriter, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid address: " + err.Error()})
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(w, chi.URLParam(r, "owner"))
	if !ok {
		return
	}
	status, err := s.backend.VaultStatus(r.Context(), owner, strings.TrimSpace(r.URL.Query().Get("feed")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.NewVaultView(status))
}

type eventView struct {
	Receipt    string            `json:"receipt"`
	Operation  string            `json:"operation"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

func (s *Server) handleVaultEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "event store not configured"})
		return
	}
	owner, ok := parseAddress(w, chi.URLParam(r, "owner"))
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	records, err := s.events.ByOwner(r.Context(), owner.String(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]eventView, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decode()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, eventView{Receipt: rec.ReceiptID, Operation: rec.Operation, Type: rec.Type, Attributes: attrs, RecordedAt: rec.RecordedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	asset := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "asset")))
	balance, err := s.backend.Balance(asset, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset, "address": addr.String(), "balance": balance.String()})
}
