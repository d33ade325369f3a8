package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store/memstore"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, jwtSecret string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{Game: config.DefaultGameConfig()}
	cfg.Game.StoreDriver = config.StoreDriverMemory

	ctx, cancel := context.WithCancel(context.Background())
	clock := clockwork.NewRealClock()
	in, err := setupInfra(ctx, cfg, nil, clock)
	require.NoError(t, err)
	go in.rooms.Start(ctx)

	services := setupServices(cfg, memstore.New(), in, clock)
	server := setupServer(0, jwtSecret, services, in, nil)
	srv := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = services.Countdown.Shutdown(context.Background())
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure, token string, body any, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+procedure, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestQuizFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")

	var session struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, "/quiz.v1.CatalogService/CreateSession", "",
		map[string]any{"name": "Friday quiz"}, &session))

	require.Equal(t, http.StatusOK, call(t, srv, "/quiz.v1.CatalogService/CreateQuestion", "",
		map[string]any{"session_id": session.ID, "text": "Name a planet", "question_type": "verbal"}, nil))

	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/sessions/"+session.ID, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer ws.Close()
	// Give the room a moment to register the socket.
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, http.StatusOK, call(t, srv, "/quiz.v1.SessionService/OpenSession", "",
		map[string]any{"session_id": session.ID}, nil))

	var joined struct {
		Participant struct {
			ID string `json:"id"`
		} `json:"participant"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, "/quiz.v1.ParticipantService/JoinSession", "",
		map[string]any{"session_id": session.ID, "username": "amina"}, &joined))

	require.Equal(t, http.StatusOK, call(t, srv, "/quiz.v1.SessionService/StartSession", "",
		map[string]any{"session_id": session.ID}, nil))

	seen := map[events.Type]bool{}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for !seen[events.TypeSessionStarted] {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var env events.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		seen[env.EventType] = true
	}
	assert.True(t, seen[events.TypeSessionOpened])
	assert.True(t, seen[events.TypeParticipantJoined])

	stateResp, err := http.Get(srv.URL + "/api/sessions/" + session.ID + "/state?participant_id=" + joined.Participant.ID)
	require.NoError(t, err)
	defer stateResp.Body.Close()
	require.Equal(t, http.StatusOK, stateResp.StatusCode)

	var state struct {
		Status         string `json:"status"`
		TotalQuestions int    `json:"total_questions"`
		Question       *struct {
			QuestionType string `json:"question_type"`
		} `json:"question"`
	}
	require.NoError(t, json.NewDecoder(stateResp.Body).Decode(&state))
	assert.Equal(t, "running", state.Status)
	assert.Equal(t, 1, state.TotalQuestions)
	require.NotNil(t, state.Question)
	assert.Equal(t, "verbal", state.Question.QuestionType)
}

func TestHostProceduresNeedToken(t *testing.T) {
	secret := "test-secret"
	srv := newTestServer(t, secret)

	status := call(t, srv, "/quiz.v1.CatalogService/CreateSession", "", map[string]any{"name": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token, err := rpcutil.IssueHostToken(secret, "host-1", time.Hour)
	require.NoError(t, err)
	status = call(t, srv, "/quiz.v1.CatalogService/CreateSession", token, map[string]any{"name": "x"}, nil)
	assert.Equal(t, http.StatusOK, status)

	// Player procedures skip the guard and reach the app.
	status = call(t, srv, "/quiz.v1.ParticipantService/ListParticipants", "",
		map[string]any{"session_id": "00000000-0000-0000-0000-000000000001"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthWithoutDatabase(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
