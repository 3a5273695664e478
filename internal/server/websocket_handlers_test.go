package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveEvents_PlainRequestRejected(t *testing.T) {
	ts := newTestServer(t, withFlags("live_events=on"))

	resp := ts.do(t, request{method: http.MethodGet, path: "/ws"})
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestLiveEvents_DisabledByFlag(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, request{method: http.MethodGet, path: "/ws"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLiveEvents_StreamsPostCreated(t *testing.T) {
	ts := newTestServer(t, withFlags("markdown=on,live_events=on"))
	author := testutil.CreateUser(t, ts.db, "test", "password1")
	cookie := ts.cookieFor(t, author)
	require.NoError(t, ts.StartLiveEvents())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ts.hub.Shutdown(ctx)
		_ = ts.app.ShutdownWithContext(ctx)
	})

	header := http.Header{}
	header.Set("Cookie", cookie)
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return ts.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	created := ts.do(t, request{method: http.MethodPost, path: "/create", cookie: cookie,
		json: `{"title":"live","body":"hello"}`})
	require.Equal(t, http.StatusCreated, created.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.PostEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, models.EventPostCreated, event.Type)
	assert.Equal(t, uint(1), event.PostID)
	assert.Equal(t, author.ID, event.UserID)
	assert.Equal(t, "live", event.Title)
}
