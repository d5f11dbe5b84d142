// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/venturelens/dealflow/internal/adapters/diligence"
	"github.com/venturelens/dealflow/internal/adapters/repository"
	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/internal/domain/view"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Deal builds the current view model for a deal.
	Deal(ctx context.Context, id string) (view.Model, error)

	// PutRecord upserts a raw record on behalf of the worker/upload boundary.
	PutRecord(ctx context.Context, rec record.RawRecord) error

	// Diligence trigger/poll protocol operations.
	StartDiligence(ctx context.Context, dealID string) (diligence.Snapshot, error)
	DiligenceState(ctx context.Context, dealID string) (diligence.Snapshot, error)
	ResetDiligence(ctx context.Context, dealID string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	dealsHandler   *DealsHandler
	recordsHandler *RecordsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		dealsHandler:   NewDealsHandler(deps),
		recordsHandler: NewRecordsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/deals/", MetricsMiddleware(s.dealsHandler.HandleDeals, "deals"))
	mux.HandleFunc("/records/", MetricsMiddleware(s.recordsHandler.HandlePutRecord, "records"))
}

// diligenceStatus mirrors the controller snapshot for JSON responses.
type diligenceStatus struct {
	MemoID string           `json:"memo_id"`
	State  diligence.State  `json:"state"`
	Result diligence.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Polls  int              `json:"polls"`
}

func toDiligenceStatus(snap diligence.Snapshot) diligenceStatus {
	out := diligenceStatus{
		MemoID: snap.MemoID,
		State:  snap.State,
		Result: snap.Result,
		Polls:  snap.Polls,
	}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}
	return out
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

// writeDomainError translates core errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, diligence.ErrNoMemoID):
		writeError(w, http.StatusUnprocessableEntity, "no_memo_id", Wrap(op, err))
	case errors.Is(err, diligence.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "already_running", Wrap(op, err))
	case errors.Is(err, diligence.ErrTriggerFailed):
		writeError(w, http.StatusBadGateway, "trigger_failed", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
