package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListGames returns the game catalog
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.Catalog().Games())
}

// GetGame returns one catalog entry
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.service.GetGame(chi.URLParam(r, "gameID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, game)
}

// GetOverallLeaderboard returns players ordered by total points
func (h *Handler) GetOverallLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	board, err := h.service.GetOverallLeaderboard(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, board)
}

// GetGameLeaderboard returns a game's entries ordered by score
func (h *Handler) GetGameLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	board, err := h.service.GetGameLeaderboard(r.Context(), chi.URLParam(r, "gameType"), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, board)
}

// GetGameBestPerPlayer returns each player's best score in a game
func (h *Handler) GetGameBestPerPlayer(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	board, err := h.service.GetGameBestPerPlayer(r.Context(), chi.URLParam(r, "gameType"), page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, board)
}

// GetGlobalGameStats returns the top entry of every game
func (h *Handler) GetGlobalGameStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetGlobalGameStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, stats)
}
