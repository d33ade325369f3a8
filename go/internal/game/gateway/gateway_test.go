package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGateway(t *testing.T) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewService(cm, nil, nil).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return cm, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env events.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestLocalBroadcastReachesOnlyTheSessionRoom(t *testing.T) {
	cm, srv := startGateway(t)
	sessionID, otherID := uuid.New(), uuid.New()

	first := dial(t, srv, "/ws/sessions/"+sessionID.String())
	second := dial(t, srv, "/ws/sessions/"+sessionID.String()+"?participant_id="+uuid.NewString())
	outsider := dial(t, srv, "/ws/sessions/"+otherID.String())

	require.Eventually(t, func() bool {
		return cm.RoomSize(sessionID) == 2 && cm.RoomSize(otherID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	b := NewLocalBroadcaster(cm, clock)
	err := b.Broadcast(context.Background(), events.Event{
		Type:      events.TypeCountdownTick,
		SessionID: sessionID,
		Payload:   events.CountdownTickPayload{SessionID: sessionID, Value: 3},
	})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{first, second} {
		env := readEnvelope(t, conn)
		assert.Equal(t, events.TypeCountdownTick, env.EventType)
		assert.Equal(t, sessionID, env.SessionID)
		assert.Equal(t, clock.Now(), env.Timestamp)
		assert.Contains(t, string(env.Payload), `"value":3`)
	}

	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = outsider.ReadMessage()
	assert.Error(t, err)
}

func TestClosedSocketLeavesRoom(t *testing.T) {
	cm, srv := startGateway(t)
	sessionID := uuid.New()

	conn := dial(t, srv, "/ws/sessions/"+sessionID.String())
	require.Eventually(t, func() bool { return cm.RoomSize(sessionID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	require.Eventually(t, func() bool { return cm.RoomSize(sessionID) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, cm.Stats().ActiveSessions)
}

func TestUpgradeRejectsBadIDs(t *testing.T) {
	_, srv := startGateway(t)

	resp, err := http.Get(srv.URL + "/ws/sessions/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws/sessions/" + uuid.NewString() + "?participant_id=bad")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	cm, srv := startGateway(t)
	sessionID := uuid.New()
	dial(t, srv, "/ws/sessions/"+sessionID.String())
	require.Eventually(t, func() bool { return cm.RoomSize(sessionID) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.Rooms[sessionID.String()])
}

type sinkFunc func(env events.Envelope) error

func (f sinkFunc) BroadcastEnvelope(env events.Envelope) error { return f(env) }

func TestProcessMessage(t *testing.T) {
	sessionID := uuid.New()
	valid, err := json.Marshal(events.Envelope{
		EventID:   uuid.New(),
		EventType: events.TypeQueueUpdated,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(`{"queue":[]}`),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", string(valid), false},
		{"garbage", "{not json", true},
		{"no session", `{"eventId":"` + uuid.NewString() + `","eventType":"QueueUpdated","sessionId":"00000000-0000-0000-0000-000000000000","payload":{}}`, true},
		{"unknown type", `{"eventId":"` + uuid.NewString() + `","eventType":"PickMade","sessionId":"` + sessionID.String() + `","payload":{}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []events.Envelope
			sink := sinkFunc(func(env events.Envelope) error {
				got = append(got, env)
				return nil
			})

			err := processMessage(sink, []byte(tt.data))

			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, sessionID, got[0].SessionID)
			assert.JSONEq(t, `{"queue":[]}`, string(got[0].Payload))
		})
	}
}

func TestStateRouteIsMounted(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	state := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.PathValue("id")))
	})
	mux := http.NewServeMux()
	NewService(cm, nil, state).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/state", nil))

	assert.Equal(t, "abc", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodOptions, "/api/sessions/x/state", nil)
	req.Header.Set("Origin", "https://quiz.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
