package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIndexPage(t *testing.T) {
	m, _ := newTestManager(t)
	srv := newTestServer(t, m)

	status, body := getBody(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "No active feedback sessions")

	id, err := m.CreateSession("/work/project", "Added <b>tests</b>")
	require.NoError(t, err)

	status, body = getBody(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "/session/"+id)
	assert.Contains(t, body, "Added &lt;b&gt;tests&lt;/b&gt;")
}

func TestSessionPage(t *testing.T) {
	m, _ := newTestManager(t)
	srv := newTestServer(t, m)

	id, err := m.CreateSession("/work/project", "Refactored the parser")
	require.NoError(t, err)

	status, body := getBody(t, srv.URL+"/session/"+id)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Refactored the parser")
	assert.Contains(t, body, "/work/project")
	assert.Contains(t, body, id)

	status, body = getBody(t, srv.URL+"/session/unknown")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Session not found")
}

func TestCompleteEndpoint(t *testing.T) {
	m, _ := newTestManager(t)
	srv := newTestServer(t, m)

	id, err := m.CreateSession(t.TempDir(), "s")
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/complete/"+id, "application/json", strings.NewReader(`{"feedback":"via http"}`))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])

	fb, err := m.WaitForFeedback(context.Background(), id, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "via http", fb.InteractiveFeedback)

	t.Run("unknown session", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/complete/nope", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Session not found", out["error"])
	})

	t.Run("bad body", func(t *testing.T) {
		id, err := m.CreateSession(t.TempDir(), "s")
		require.NoError(t, err)
		resp, err := http.Post(srv.URL+"/api/complete/"+id, "application/json", strings.NewReader(`not json`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListSessionsEndpoint(t *testing.T) {
	m, _ := newTestManager(t)
	srv := newTestServer(t, m)

	id, err := m.CreateSession("/work", "summary")
	require.NoError(t, err)

	status, body := getBody(t, srv.URL+"/api/sessions")
	assert.Equal(t, http.StatusOK, status)

	var infos []sessionInfo
	require.NoError(t, json.Unmarshal([]byte(body), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "/work", infos[0].ProjectDirectory)
	assert.False(t, infos[0].Completed)
}

func TestHistoryEndpoint(t *testing.T) {
	m, hist := newTestManager(t)
	srv := newTestServer(t, m)

	for _, s := range []string{"a", "b", "c"} {
		_, err := hist.Record(context.Background(), history.Entry{SessionID: s, Outcome: history.OutcomeSubmitted})
		require.NoError(t, err)
	}

	status, body := getBody(t, srv.URL+"/api/history?limit=2")
	assert.Equal(t, http.StatusOK, status)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].SessionID)

	status, _ = getBody(t, srv.URL+"/api/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, status)

	t.Run("disabled", func(t *testing.T) {
		srv := newTestServer(t, NewManager(Opts{}))
		status, body := getBody(t, srv.URL+"/api/history")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body, "history is disabled")
	})
}

func TestHealthAndMetrics(t *testing.T) {
	m, _ := newTestManager(t)
	srv := newTestServer(t, m)

	status, body := getBody(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	_, err := m.CreateSession(t.TempDir(), "s")
	require.NoError(t, err)
	status, body = getBody(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "mcp_feedback_sessions_created_total 1")

	t.Run("no metrics route without collector", func(t *testing.T) {
		srv := newTestServer(t, NewManager(Opts{}))
		status, _ := getBody(t, srv.URL+"/metrics")
		assert.Equal(t, http.StatusNotFound, status)
	})
}
