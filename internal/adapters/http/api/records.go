// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/venturelens/dealflow/internal/domain/record"
)

// RecordsHandler accepts raw record writes from the worker/upload boundary.
type RecordsHandler struct {
	deps Dependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps Dependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandlePutRecord handles PUT /records/{id} requests. The body is decoded
// tolerantly: malformed fields degrade to absent values rather than
// rejecting the write, matching how workers actually emit records.
func (h *RecordsHandler) HandlePutRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_record"
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var rec record.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	// The path owns the identity; the body may omit or contradict it.
	rec.ID = id

	if err := h.deps.PutRecord(r.Context(), rec); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "stored"})
}
