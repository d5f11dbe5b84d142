// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"
)

// DealsHandler handles deal view and diligence requests.
type DealsHandler struct {
	deps Dependencies
}

// NewDealsHandler creates a new deals handler.
func NewDealsHandler(deps Dependencies) *DealsHandler {
	return &DealsHandler{deps: deps}
}

// HandleDeals dispatches requests under /deals/:
//
//	GET    /deals/{id}            current view model
//	POST   /deals/{id}/diligence  start a diligence run
//	GET    /deals/{id}/diligence  diligence run state
//	DELETE /deals/{id}/diligence  reset the diligence run
func (h *DealsHandler) HandleDeals(w http.ResponseWriter, r *http.Request) {
	const op = "api.deals"

	path := strings.TrimPrefix(r.URL.Path, "/deals/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch rest {
	case "":
		h.handleView(w, r, id)
	case "diligence":
		h.handleDiligence(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *DealsHandler) handleView(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_deal"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	model, err := h.deps.Deal(r.Context(), id)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (h *DealsHandler) handleDiligence(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.diligence"
	switch r.Method {
	case http.MethodPost:
		snap, err := h.deps.StartDiligence(r.Context(), id)
		if err != nil {
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toDiligenceStatus(snap))
	case http.MethodGet:
		snap, err := h.deps.DiligenceState(r.Context(), id)
		if err != nil {
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, toDiligenceStatus(snap))
	case http.MethodDelete:
		if err := h.deps.ResetDiligence(r.Context(), id); err != nil {
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "reset"})
	default:
		http.NotFound(w, r)
	}
}
