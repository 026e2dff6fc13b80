package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/points-ledger/internal/auth"
	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
	"github.com/points-ledger/internal/redis"
	"github.com/points-ledger/internal/service"
	"github.com/points-ledger/internal/websocket"
)

type apiEnv struct {
	router   http.Handler
	verifier *auth.Verifier
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "api-secret"

	hub := websocket.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	verifier, err := auth.NewVerifier(cfg.Auth)
	require.NoError(t, err)

	store := redis.NewStoreWithClient(client, "api", logger)
	svc := service.NewLeaderboardService(store, hub, cfg.Catalog(), &cfg.Leaderboard, cfg.Minting, logger)
	return &apiEnv{router: NewHandler(svc, hub, verifier, logger).Router(), verifier: verifier}
}

type apiResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Field   string          `json:"field"`
}

func (e *apiEnv) do(t *testing.T, method, path, identity, body string) (int, apiResult) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		token, err := e.verifier.Sign(identity, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var res apiResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec.Code, res
}

func TestSubmitScoreEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	status, res := env.do(t, http.MethodPost, "/api/v1/scores", "", `{"game_type":"snake","score":10,"points":5}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, res.Success)

	status, res = env.do(t, http.MethodPost, "/api/v1/scores", "0xA", `{"game_type":"snake","score":10,"points":5,"metadata":{"level":2}}`)
	require.Equal(t, http.StatusCreated, status, res.Error)
	var result domain.SubmissionResult
	require.NoError(t, json.Unmarshal(res.Data, &result))
	assert.Equal(t, "0xa", result.Player.Identity)
	assert.Equal(t, int64(5), result.Player.TotalPoints)
	assert.JSONEq(t, `{"level":2}`, string(result.Entry.Metadata))

	status, res = env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{"game_type":"breakBricks","score":10,"points":5}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(domain.CodeGameUnavailable), res.Code)

	status, res = env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{"game_type":"snake","score":1.5,"points":5}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeInvalidScore), res.Code)
	assert.Equal(t, "score", res.Field)

	status, _ = env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMintEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{"game_type":"snake","score":50,"points":500}`)

	status, res := env.do(t, http.MethodPost, "/api/v1/mint", "0xa", `{"points":200}`)
	require.Equal(t, http.StatusOK, status, res.Error)
	var mint domain.MintResult
	require.NoError(t, json.Unmarshal(res.Data, &mint))
	assert.Equal(t, int64(200), mint.MintedAmount)
	assert.Equal(t, 2.0, mint.ConvertedUnits)
	assert.Equal(t, int64(300), mint.Player.AvailablePoints)

	status, res = env.do(t, http.MethodPost, "/api/v1/mint", "0xa", `{"points":400}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeExceedsAvailable), res.Code)

	status, res = env.do(t, http.MethodPost, "/api/v1/mint", "0xnobody", `{"points":1}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(domain.CodePlayerNotFound), res.Code)
}

func TestLeaderboardEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{"game_type":"snake","score":50,"points":5}`)
	env.do(t, http.MethodPost, "/api/v1/scores", "0xb", `{"game_type":"snake","score":70,"points":9}`)

	status, res := env.do(t, http.MethodGet, "/api/v1/leaderboard?page=1&limit=1", "", "")
	require.Equal(t, http.StatusOK, status)
	var overall domain.OverallLeaderboard
	require.NoError(t, json.Unmarshal(res.Data, &overall))
	require.Len(t, overall.Entries, 1)
	assert.Equal(t, "0xb", overall.Entries[0].Identity)
	assert.True(t, overall.Pagination.HasNextPage)

	status, res = env.do(t, http.MethodGet, "/api/v1/leaderboard/games/snake", "", "")
	require.Equal(t, http.StatusOK, status)
	var game domain.GameLeaderboard
	require.NoError(t, json.Unmarshal(res.Data, &game))
	assert.Len(t, game.Entries, 2)

	status, res = env.do(t, http.MethodGet, "/api/v1/leaderboard/games/snake/best", "", "")
	require.Equal(t, http.StatusOK, status)
	var best domain.BestPerPlayerLeaderboard
	require.NoError(t, json.Unmarshal(res.Data, &best))
	assert.Equal(t, int64(2), best.Pagination.Total)

	status, res = env.do(t, http.MethodGet, "/api/v1/leaderboard/stats", "", "")
	require.Equal(t, http.StatusOK, status)
	var stats map[string]domain.GameTopScore
	require.NoError(t, json.Unmarshal(res.Data, &stats))
	assert.Equal(t, int64(70), stats["snake"].HighestScore)
	assert.Nil(t, stats["carRacing"].TopPlayer.PlayedAt)

	status, res = env.do(t, http.MethodGet, "/api/v1/leaderboard/games/chess", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeInvalidGameType), res.Code)

	status, res = env.do(t, http.MethodGet, "/api/v1/leaderboard?page=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeInvalidPage), res.Code)

	status, res = env.do(t, http.MethodGet, "/api/v1/leaderboard?page=4611686018427387904&limit=100", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeInvalidPage), res.Code)
}

func TestPlayerEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{"game_type":"snake","score":50,"points":5}`)
	env.do(t, http.MethodPost, "/api/v1/scores", "0xa", `{"game_type":"fallingFruit","score":20,"points":2}`)

	status, res := env.do(t, http.MethodGet, "/api/v1/players/me", "0xa", "")
	require.Equal(t, http.StatusOK, status)
	var summary domain.PlayerSummary
	require.NoError(t, json.Unmarshal(res.Data, &summary))
	assert.Equal(t, int64(7), summary.TotalPoints)
	assert.Equal(t, int64(2), summary.TotalGames)

	status, res = env.do(t, http.MethodGet, "/api/v1/players/0xA/stats", "", "")
	require.Equal(t, http.StatusOK, status)
	var stats map[string]domain.PlayerGameStats
	require.NoError(t, json.Unmarshal(res.Data, &stats))
	assert.Equal(t, int64(50), stats["snake"].HighScore)

	status, res = env.do(t, http.MethodGet, "/api/v1/players/0xa/games/snake", "", "")
	require.Equal(t, http.StatusOK, status)
	var hs domain.GameHighScore
	require.NoError(t, json.Unmarshal(res.Data, &hs))
	assert.Equal(t, int64(50), hs.HighScore)

	status, res = env.do(t, http.MethodGet, "/api/v1/scores/me?game_type=fallingFruit", "0xa", "")
	require.Equal(t, http.StatusOK, status)
	var history domain.ScoreHistory
	require.NoError(t, json.Unmarshal(res.Data, &history))
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "fallingFruit", history.Entries[0].GameType)

	status, res = env.do(t, http.MethodPost, "/api/v1/players/me/reconcile", "0xa", "")
	require.Equal(t, http.StatusOK, status)
	var rec service.ReconcileResult
	require.NoError(t, json.Unmarshal(res.Data, &rec))
	assert.False(t, rec.Repaired)

	status, res = env.do(t, http.MethodGet, "/api/v1/players/0xnobody/summary", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(domain.CodePlayerNotFound), res.Code)
}

func TestCatalogAndHealthEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	status, res := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)

	status, res = env.do(t, http.MethodGet, "/api/v1/games", "", "")
	require.Equal(t, http.StatusOK, status)
	var games []domain.Game
	require.NoError(t, json.Unmarshal(res.Data, &games))
	assert.Len(t, games, 4)
	assert.Equal(t, "snake", games[0].ID)

	status, res = env.do(t, http.MethodGet, "/api/v1/games/carRacing", "", "")
	require.Equal(t, http.StatusOK, status)
	var game domain.Game
	require.NoError(t, json.Unmarshal(res.Data, &game))
	assert.Equal(t, domain.GameStatusComingSoon, game.Status)

	status, res = env.do(t, http.MethodGet, "/api/v1/games/chess", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(domain.CodeGameNotFound), res.Code)

	status, res = env.do(t, http.MethodGet, "/api/v1/ws/stats", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"total_connections":0}`, string(res.Data))
}
