package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetPlayerStats returns per-game stats for any player
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	h.playerStats(w, r, chi.URLParam(r, "identity"))
}

// GetMyStats returns per-game stats for the caller
func (h *Handler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	h.playerStats(w, r, identityFrom(r.Context()))
}

func (h *Handler) playerStats(w http.ResponseWriter, r *http.Request, identity string) {
	stats, err := h.service.GetPlayerStats(r.Context(), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, stats)
}

// GetPlayerSummary returns any player's balances and counters
func (h *Handler) GetPlayerSummary(w http.ResponseWriter, r *http.Request) {
	h.playerSummary(w, r, chi.URLParam(r, "identity"))
}

// GetMySummary returns the caller's balances and counters
func (h *Handler) GetMySummary(w http.ResponseWriter, r *http.Request) {
	h.playerSummary(w, r, identityFrom(r.Context()))
}

func (h *Handler) playerSummary(w http.ResponseWriter, r *http.Request, identity string) {
	summary, err := h.service.GetPlayerSummary(r.Context(), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, summary)
}

// GetPlayerGameHighScore returns a player's high score in one game
func (h *Handler) GetPlayerGameHighScore(w http.ResponseWriter, r *http.Request) {
	hs, err := h.service.GetPlayerGameHighScore(r.Context(), chi.URLParam(r, "identity"), chi.URLParam(r, "gameType"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, hs)
}

// ReconcileMe replays the caller's ledger into their aggregate
func (h *Handler) ReconcileMe(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ReconcilePlayer(r.Context(), identityFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, res)
}
