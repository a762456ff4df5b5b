package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
)

type pricingRequest struct {
	FieldSize   int                `json:"field_size"`
	Contestants []model.Contestant `json:"contestants"`
}

// fieldSize defaults to the number of contestants supplied.
func (p pricingRequest) fieldSize() int {
	if p.FieldSize == 0 {
		return len(p.Contestants)
	}
	return p.FieldSize
}

type entryRequest struct {
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Picks       []model.Pick `json:"picks"`
}

type performancesRequest struct {
	Performances []model.Performance `json:"performances"`
}

type recordedResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// handlePricingPreview handles POST /pricing/preview.
func (s *Server) handlePricingPreview(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	preview, err := s.deps.Price(r.Context(), req.Contestants, req.fieldSize())
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleCreateContest handles POST /contests.
func (s *Server) handleCreateContest(w http.ResponseWriter, r *http.Request) {
	var spec service.ContestSpec
	if err := s.decode(w, r, &spec); err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	c, err := s.deps.CreateContest(r.Context(), spec)
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/contests/%s", c.ID))
	writeJSON(w, http.StatusCreated, c)
}

// handleStartContest handles POST /contests/{id}/start.
func (s *Server) handleStartContest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := s.deps.StartContest(r.Context(), id)
	if err != nil {
		s.writeFailure(r.Context(), w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePriceContest handles POST /contests/{id}/pricing.
func (s *Server) handlePriceContest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req pricingRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	run, err := s.deps.PriceContest(r.Context(), id, req.Contestants, req.fieldSize())
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// handleSubmitEntry handles POST /contests/{id}/entries.
func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req entryRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	e, err := s.deps.SubmitEntry(r.Context(), service.EntrySpec{
		ContestID:   id,
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Picks:       req.Picks,
	})
	if err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleRecordPerformances handles POST /contests/{id}/performances.
func (s *Server) handleRecordPerformances(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req performancesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeFailure(r.Context(), w, "", err)
		return
	}
	if err := s.deps.RecordPerformances(r.Context(), id, req.Performances); err != nil {
		s.writeFailure(r.Context(), w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, recordedResponse{Status: "recorded", Count: len(req.Performances)})
}
