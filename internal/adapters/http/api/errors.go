package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/settlement"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

type errorResponse struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Settlement *settlement.Status `json:"settlement,omitempty"`
}

type pendingResponse struct {
	Status    string `json:"status"`
	ContestID string `json:"contest_id"`
	ResultID  string `json:"result_id"`
	Step      string `json:"step"`
}

// classify maps an error onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, failure.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, failure.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, failure.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, failure.ErrNoEntries):
		return http.StatusUnprocessableEntity, "no_entries"
	case errors.Is(err, failure.ErrDataUnavailable):
		return http.StatusServiceUnavailable, "data_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeFailure renders err. A partial settlement write is not a failure for
// the caller: the result is recorded and payouts will be completed by repair.
// Conflicts on a contest carry its current settlement status when it can be read.
func (s *Server) writeFailure(ctx context.Context, w http.ResponseWriter, contestID string, err error) {
	var pw *failure.PartialWriteError
	if errors.As(err, &pw) {
		writeJSON(w, http.StatusAccepted, pendingResponse{
			Status:    "payouts_pending",
			ContestID: pw.ContestID,
			ResultID:  pw.ResultID,
			Step:      pw.Step,
		})
		return
	}

	status, code := classify(err)
	resp := errorResponse{Code: code, Message: err.Error()}
	if status == http.StatusConflict && contestID != "" {
		if st, serr := s.deps.SettlementStatus(ctx, contestID); serr == nil {
			resp.Settlement = &st
		}
	}
	writeJSON(w, status, resp)
}
