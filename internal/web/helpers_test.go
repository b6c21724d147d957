package web

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/history"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/metrics"
	"github.com/stretchr/testify/require"
)

type memHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (h *memHistory) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.ID = "entry-" + e.SessionID
	h.entries = append(h.entries, e)
	return e, nil
}

func (h *memHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]history.Entry, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

func (h *memHistory) all() []history.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Entry(nil), h.entries...)
}

func newTestManager(t *testing.T) (*Manager, *memHistory) {
	t.Helper()
	hist := &memHistory{}
	m := NewManager(Opts{
		Host:        "127.0.0.1",
		Port:        0,
		History:     hist,
		Metrics:     metrics.New(),
		OpenBrowser: func(string) error { return nil },
	})
	return m, hist
}

// newTestServer serves the manager's routes without binding its own listener.
func newTestServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(m.routes())
	t.Cleanup(srv.Close)
	return srv
}

func dialSession(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil reads messages until one of the given type arrives and returns
// everything read, that message included.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []outbound {
	t.Helper()
	var msgs []outbound
	for {
		msg := readMessage(t, conn)
		msgs = append(msgs, msg)
		if msg.Type == typ {
			return msgs
		}
	}
}

func logData(msgs []outbound) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Type == msgLog {
			b.WriteString(m.Data)
		}
	}
	return b.String()
}
