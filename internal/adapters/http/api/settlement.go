package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
)

type batchRequest struct {
	Jobs []model.SettlementJob `json:"jobs"`
}

type batchResponse struct {
	Items []service.BatchItem `json:"items"`
}

// handleSettle handles POST /contests/{id}/settle.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, err := s.deps.Settle(r.Context(), id)
	if err != nil {
		s.writeFailure(r.Context(), w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRepair handles POST /contests/{id}/repair.
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, err := s.deps.Repair(r.Context(), id)
	if err != nil {
		s.writeFailure(r.Context(), w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetSettlement handles GET /contests/{id}/settlement.
func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, err := s.deps.GetSettlement(r.Context(), id)
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSettlementStatus handles GET /contests/{id}/settlement/status.
func (s *Server) handleSettlementStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, err := s.deps.SettlementStatus(r.Context(), id)
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSettleBatch handles POST /settlements/batch.
func (s *Server) handleSettleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	if len(req.Jobs) == 0 {
		s.writeFailure(r.Context(), w, "", fmt.Errorf("%w: jobs must not be empty", ErrBadRequest))
		return
	}
	items, err := s.deps.SettleBatch(r.Context(), req.Jobs)
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Items: items})
}
