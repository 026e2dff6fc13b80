package handler

import (
	"encoding/json"
	"net/http"

	"github.com/points-ledger/internal/domain"
)

// MintRequest is the body of a mint call
type MintRequest struct {
	Points float64 `json:"points"`
}

// SubmitScore records a play for the authenticated player
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeError(w, r, domain.NewValidationError(domain.CodeInvalidScore, "body", "invalid request body"))
		return
	}

	result, err := h.service.SubmitScore(r.Context(), identityFrom(r.Context()), submission)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: result})
}

// GetScoreHistory returns the authenticated player's ledger, newest first
func (h *Handler) GetScoreHistory(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	history, err := h.service.GetScoreHistory(r.Context(), identityFrom(r.Context()), r.URL.Query().Get("game_type"), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, history)
}

// MintPoints converts the authenticated player's unminted points
func (h *Handler) MintPoints(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError(domain.CodeInvalidAmount, "points", "invalid request body"))
		return
	}

	result, err := h.service.MintPoints(r.Context(), identityFrom(r.Context()), req.Points)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, result)
}
