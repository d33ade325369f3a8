package queue

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceOverHTTP(t *testing.T) {
	f := newFixture(t)
	q := f.MultipleChoice(f.session.ID, 0, "A", "B")
	f.OpenQuestion(f.session.ID, 0)
	p1 := f.Participant(f.session.ID, "p1")
	p2 := f.Participant(f.session.ID, "p2")

	mux := http.NewServeMux()
	mux.Handle(NewQueueServiceHandler(NewService(f.app)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	call := func(method, body string) (int, string, http.Header) {
		resp, err := http.Post(srv.URL+rpcutil.Procedure(ServiceName, method), "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(data), resp.Header
	}

	status, body, _ := call("RequestTurn", `{"participant_id":"`+p1.ID.String()+`","session_id":"`+f.session.ID.String()+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"assigned":true`)

	f.Clock.Advance(time.Millisecond)
	status, body, _ = call("RequestTurn", `{"participant_id":"`+p2.ID.String()+`","session_id":"`+f.session.ID.String()+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"position":2`)

	status, _, header := call("SubmitAnswer", `{"participant_id":"`+p2.ID.String()+`","question_id":"`+q.ID.String()+`","option_id":"`+q.Options[0].ID.String()+`"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(apperrors.KindForbidden), header.Get(rpcutil.ErrorKindHeader))

	status, _, header = call("RequestTurn", `{"participant_id":"`+p1.ID.String()+`","session_id":"`+f.session.ID.String()+`"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(apperrors.KindConflict), header.Get(rpcutil.ErrorKindHeader))

	status, _, _ = call("EvaluateAnswer", `{"participant_id":"`+p1.ID.String()+`","question_id":"`+q.ID.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, status, "is_correct is required")

	status, body, _ = call("GetQueue", `{"session_id":"`+f.session.ID.String()+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"username":"p1"`)
}
