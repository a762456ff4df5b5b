// Package api exposes the pricing and settlement operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/fairway/internal/adapters/http/swagger"
	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/settlement"
)

const defaultMaxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Health(ctx context.Context) error

	Price(ctx context.Context, contestants []model.Contestant, fieldSize int) (service.PricingPreview, error)
	PriceContest(ctx context.Context, contestID string, contestants []model.Contestant, fieldSize int) (model.PricingRun, error)

	CreateContest(ctx context.Context, spec service.ContestSpec) (model.Contest, error)
	StartContest(ctx context.Context, contestID string) (model.Contest, error)
	SubmitEntry(ctx context.Context, spec service.EntrySpec) (model.Entry, error)
	RecordPerformances(ctx context.Context, contestID string, perf []model.Performance) error

	Settle(ctx context.Context, contestID string) (settlement.Outcome, error)
	Repair(ctx context.Context, contestID string) (settlement.Outcome, error)
	SettlementStatus(ctx context.Context, contestID string) (settlement.Status, error)
	GetSettlement(ctx context.Context, contestID string) (settlement.Outcome, error)
	SettleBatch(ctx context.Context, jobs []model.SettlementJob) ([]service.BatchItem, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	stats          *StatsHandler
	health         *HealthHandler
	allowedOrigins []string
	maxBodyBytes   int64
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		stats:          NewStatsHandler(statsProvider),
		health:         NewHealthHandler(deps),
		allowedOrigins: []string{"*"},
		maxBodyBytes:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.health.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.health.HandleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.stats.HandleStats, "stats")).Methods(http.MethodGet)

	r.HandleFunc("/pricing/preview", MetricsMiddleware(s.handlePricingPreview, "pricing_preview")).Methods(http.MethodPost)
	r.HandleFunc("/contests", MetricsMiddleware(s.handleCreateContest, "create_contest")).Methods(http.MethodPost)
	r.HandleFunc("/contests/{id}/start", MetricsMiddleware(s.handleStartContest, "start_contest")).Methods(http.MethodPost)
	r.HandleFunc("/contests/{id}/pricing", MetricsMiddleware(s.handlePriceContest, "price_contest")).Methods(http.MethodPost)
	r.HandleFunc("/contests/{id}/entries", MetricsMiddleware(s.handleSubmitEntry, "submit_entry")).Methods(http.MethodPost)
	r.HandleFunc("/contests/{id}/performances", MetricsMiddleware(s.handleRecordPerformances, "record_performances")).Methods(http.MethodPost)

	r.HandleFunc("/contests/{id}/settle", MetricsMiddleware(s.handleSettle, "settle")).Methods(http.MethodPost)
	r.HandleFunc("/contests/{id}/repair", MetricsMiddleware(s.handleRepair, "repair")).Methods(http.MethodPost)
	r.HandleFunc("/contests/{id}/settlement", MetricsMiddleware(s.handleGetSettlement, "get_settlement")).Methods(http.MethodGet)
	r.HandleFunc("/contests/{id}/settlement/status", MetricsMiddleware(s.handleSettlementStatus, "settlement_status")).Methods(http.MethodGet)
	r.HandleFunc("/settlements/batch", MetricsMiddleware(s.handleSettleBatch, "settle_batch")).Methods(http.MethodPost)
}

// Handler returns the routed API wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	s.Register(r)
	swagger.Register(r)
	return CORS(s.allowedOrigins)(r)
}

// decode reads a JSON body into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
