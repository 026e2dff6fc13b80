package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/points-ledger/internal/auth"
	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
)

type wsEnv struct {
	hub      *Hub
	verifier *auth.Verifier
	server   *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	verifier, err := auth.NewVerifier(config.AuthConfig{JWTSecret: "hub-secret"})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, verifier, logger, w, r)
	}))
	t.Cleanup(server.Close)
	return &wsEnv{hub: hub, verifier: verifier, server: server}
}

func (e *wsEnv) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestServeWs_AckAndTopicRouting(t *testing.T) {
	env := newWSEnv(t)

	token, err := env.verifier.Sign("0xABC", time.Hour)
	require.NoError(t, err)

	player, _, err := env.dial(t, token)
	require.NoError(t, err)
	anon, _, err := env.dial(t, "")
	require.NoError(t, err)

	ack := readEvent(t, player)
	assert.Equal(t, domain.EventConnectionAck, ack["type"])
	assert.Equal(t, "0xabc", ack["data"].(map[string]any)["identity"])

	ack = readEvent(t, anon)
	assert.Equal(t, domain.EventConnectionAck, ack["type"])
	assert.Nil(t, ack["data"].(map[string]any)["identity"])

	require.Eventually(t, func() bool {
		return env.hub.GetTotalConnections() == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.hub.GetSubscriberCount(domain.PlayerTopic("0xabc")))
	assert.Equal(t, 2, env.hub.GetSubscriberCount(domain.TopicGlobal))

	ctx := context.Background()
	env.hub.Publish(ctx, domain.PlayerTopic("0xabc"), domain.Event{Type: domain.EventPlayerUpdate})
	env.hub.Publish(ctx, domain.TopicGlobal, domain.Event{Type: domain.EventScoreNew, Scope: "snake"})

	assert.Equal(t, domain.EventPlayerUpdate, readEvent(t, player)["type"])
	assert.Equal(t, domain.EventScoreNew, readEvent(t, player)["type"])

	got := readEvent(t, anon)
	assert.Equal(t, domain.EventScoreNew, got["type"], "anonymous clients only see global events")
	assert.Equal(t, "snake", got["scope"])
}

func TestServeWs_PingPong(t *testing.T) {
	env := newWSEnv(t)
	conn, _, err := env.dial(t, "")
	require.NoError(t, err)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, domain.EventPong, readEvent(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, domain.EventError, readEvent(t, conn)["type"])
}

func TestServeWs_RejectsBadToken(t *testing.T) {
	env := newWSEnv(t)
	_, resp, err := env.dial(t, "garbage")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_UnregisterOnClose(t *testing.T) {
	env := newWSEnv(t)
	conn, _, err := env.dial(t, "")
	require.NoError(t, err)
	readEvent(t, conn)

	require.Eventually(t, func() bool { return env.hub.GetTotalConnections() == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return env.hub.GetTotalConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
