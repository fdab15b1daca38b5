package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, runID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/"+runID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) result.Result {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var r result.Result
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestHubStreamsUntilTerminal(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	srv := newServer(t, hub)
	conn := dial(t, srv, "run-1")
	require.Eventually(t, func() bool { return hub.Subscribers("run-1") == 1 }, 5*time.Second, time.Millisecond)

	snap, err := result.New("run-1", "monte-carlo-adaptive", lineup.Policy{}, 10).WithProgress(4, 100)
	require.NoError(t, err)
	other, err := result.New("run-2", "monte-carlo-adaptive", lineup.Policy{}, 10).WithProgress(1, 100)
	require.NoError(t, err)
	hub.Publish(other)
	sink := hub.Sink()
	sink(snap)
	final, err := snap.Complete(200)
	require.NoError(t, err)
	sink(final)

	first := read(t, conn)
	assert.Equal(t, int64(4), first.CountCompleted)
	last := read(t, conn)
	assert.Equal(t, result.Complete, last.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Zero(t, hub.Subscribers("run-1"))
}

func TestLateSubscriberGetsLatest(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	srv := newServer(t, hub)

	final, err := result.New("done", "sort-by-average", lineup.Policy{}, 1).Complete(5)
	require.NoError(t, err)
	hub.Publish(final)

	conn := dial(t, srv, "done")
	got := read(t, conn)
	assert.Equal(t, result.Complete, got.Status)

	hub.Forget("done")
	conn2 := dial(t, srv, "done")
	require.Eventually(t, func() bool { return hub.Subscribers("done") == 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, conn2.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("done") == 0 }, 5*time.Second, time.Millisecond)
}
