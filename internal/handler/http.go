package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/points-ledger/internal/auth"
	"github.com/points-ledger/internal/domain"
	"github.com/points-ledger/internal/service"
	"github.com/points-ledger/internal/websocket"
)

type ctxKey struct{}

// Handler provides HTTP handlers for the ledger API
type Handler struct {
	service  *service.LeaderboardService
	hub      *websocket.Hub
	verifier *auth.Verifier
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.LeaderboardService, hub *websocket.Hub, verifier *auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		hub:      hub,
		verifier: verifier,
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    domain.Code `json:"code,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", h.ListGames)
		r.Get("/games/{gameID}", h.GetGame)

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetOverallLeaderboard)
			r.Get("/games/{gameType}", h.GetGameLeaderboard)
			r.Get("/games/{gameType}/best", h.GetGameBestPerPlayer)
			r.Get("/stats", h.GetGlobalGameStats)
		})

		r.Get("/players/{identity}/stats", h.GetPlayerStats)
		r.Get("/players/{identity}/summary", h.GetPlayerSummary)
		r.Get("/players/{identity}/games/{gameType}", h.GetPlayerGameHighScore)

		r.Group(func(r chi.Router) {
			r.Use(h.requireIdentity)

			r.Post("/scores", h.SubmitScore)
			r.Get("/scores/me", h.GetScoreHistory)
			r.Post("/mint", h.MintPoints)
			r.Get("/players/me", h.GetMySummary)
			r.Get("/players/me/stats", h.GetMyStats)
			r.Post("/players/me/reconcile", h.ReconcileMe)
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireIdentity resolves the bearer token into the caller's identity
func (h *Handler) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.Verify(auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			h.writeJSON(w, http.StatusUnauthorized, APIResponse{Success: false, Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, identity)))
	})
}

func identityFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps a domain error onto a status code and reason code
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := APIResponse{Success: false, Error: err.Error(), Code: domain.CodeOf(err)}

	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
		if resp.Code == domain.CodeGameUnavailable {
			status = http.StatusForbidden
		}
		resp.Field = fieldOf(err)
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		resp.Error = "internal server error"
	}
	h.writeJSON(w, status, resp)
}

func fieldOf(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}

// pageParams reads page and limit; absent values fall back to the service defaults
func pageParams(r *http.Request) (int, int, error) {
	page, err := intParam(r, "page", domain.CodeInvalidPage)
	if err != nil {
		return 0, 0, err
	}
	limit, err := intParam(r, "limit", domain.CodeInvalidLimit)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(r *http.Request, name string, code domain.Code) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError(code, name, name+" must be a positive integer")
	}
	return n, nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.verifier, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}
