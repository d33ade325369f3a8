package rpcutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type echoResponse struct {
	SessionID string `json:"session_id"`
	Host      string `json:"host,omitempty"`
}

const testService = "quiz.v1.TestService"

func newTestServer(t *testing.T, secret string, fail error) *httptest.Server {
	t.Helper()
	svc := NewServiceHandler(testService, connect.WithInterceptors(HostGuard(secret, Procedure(testService, "Guarded"))))
	echo := func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
		if fail != nil {
			return nil, fail
		}
		res := &echoResponse{SessionID: req.SessionID}
		if claims, ok := HostFromContext(ctx); ok {
			res.Host = claims.Subject
		}
		return res, nil
	}
	Handle(svc, "Echo", echo)
	Handle(svc, "Guarded", echo)

	mux := http.NewServeMux()
	mux.Handle(svc.Mount())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandleRoundTrip(t *testing.T) {
	srv := newTestServer(t, "", nil)
	id := "0b9a3c55-4a0e-4b8e-9c1c-7a3e2f1d0c11"

	resp, body := post(t, srv.URL+Procedure(testService, "Echo"), `{"session_id":"`+id+`"}`, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["session_id"])
}

func TestHandleRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t, "", nil)

	resp, body := post(t, srv.URL+Procedure(testService, "Echo"), `{"session_id":"nope"}`, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_argument", body["code"])
	assert.Equal(t, "invalid_input", resp.Header.Get(ErrorKindHeader))
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{apperrors.Conflict("already in queue"), http.StatusConflict, "aborted", "already in queue"},
		{apperrors.Forbidden("not your turn"), http.StatusForbidden, "permission_denied", "not your turn"},
		{apperrors.NotFound("session not found"), http.StatusNotFound, "not_found", "session not found"},
		{apperrors.PreconditionFailed("no questions"), http.StatusBadRequest, "failed_precondition", "no questions"},
		{apperrors.Internal(context.DeadlineExceeded, "lock session"), http.StatusInternalServerError, "internal", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := newTestServer(t, "", tt.err)

			resp, body := post(t, srv.URL+Procedure(testService, "Echo"), `{"session_id":"0b9a3c55-4a0e-4b8e-9c1c-7a3e2f1d0c11"}`, nil)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.msg, body["message"])
			assert.Equal(t, string(apperrors.KindOf(tt.err)), resp.Header.Get(ErrorKindHeader))
		})
	}
}

func TestHostGuard(t *testing.T) {
	const secret = "s3cret"
	srv := newTestServer(t, secret, nil)
	body := `{"session_id":"0b9a3c55-4a0e-4b8e-9c1c-7a3e2f1d0c11"}`

	resp, _ := post(t, srv.URL+Procedure(testService, "Echo"), body, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "unguarded procedure")

	resp, _ = post(t, srv.URL+Procedure(testService, "Guarded"), body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad, err := IssueHostToken("other", "host-1", time.Minute)
	require.NoError(t, err)
	resp, _ = post(t, srv.URL+Procedure(testService, "Guarded"), body, http.Header{"Authorization": {"Bearer " + bad}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	good, err := IssueHostToken(secret, "host-1", time.Minute)
	require.NoError(t, err)
	resp, out := post(t, srv.URL+Procedure(testService, "Guarded"), body, http.Header{"X-Access-Token": {good}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "host-1", out["host"])
}

func TestParseOptionalUUID(t *testing.T) {
	id, err := ParseOptionalUUID("question_id", "")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = ParseOptionalUUID("question_id", "x")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}
