package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homelet/api/internal/auth"
	"homelet/api/internal/config"
	"homelet/api/internal/models"
)

const wsTestSecret = "ws-secret"

func newTestServer(t *testing.T) (*httptest.Server, *Broker, int64) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b, _, chatID := newTestBroker(t, Options{})
	cfg := &config.Config{
		JwtSecret:          wsTestSecret,
		WsWriteTimeout:     time.Second,
		WsHandshakeTimeout: time.Second,
		WsMaxMessageBytes:  4096,
	}
	router := gin.New()
	router.GET("/ws", NewServer(b, cfg).HandleWS)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		b.Close()
		srv.Close()
	})
	return srv, b, chatID
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := auth.GenerateJWT(userID, models.RoleUser, wsTestSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func sendFrame(t *testing.T, ws *websocket.Conn, kind string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Type: kind, Payload: raw}))
}

func readWSFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestHandleWS_RejectsMissingOrInvalidCredential(t *testing.T) {
	srv, b, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": []string{"Bearer not-a-token"}}
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 0, b.Stats().Connections)
}

func TestHandleWS_JoinSendReceive(t *testing.T) {
	srv, b, chatID := newTestServer(t)

	header := http.Header{"Authorization": []string{"Bearer " + token(t, 1)}}
	ws1, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer ws1.Close()

	ws2, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token(t, 2), nil)
	require.NoError(t, err)
	defer ws2.Close()

	sendFrame(t, ws1, FrameChatJoin, RoomPayload{ChatID: chatID})
	sendFrame(t, ws2, FrameChatJoin, RoomPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return b.RoomSize(chatID) == 2 }, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, ws1, FrameMessageSend, SendPayload{ChatID: chatID, Content: "hello there"})

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		f := readWSFrame(t, ws)
		require.Equal(t, FrameMessageNew, f.Type)
		var msg MessageNewPayload
		require.NoError(t, json.Unmarshal(f.Payload, &msg))
		assert.Equal(t, chatID, msg.ChatID)
		assert.Equal(t, int64(1), msg.SenderID)
		assert.Equal(t, "hello there", msg.Content)
	}

	sendFrame(t, ws2, FrameTyping, TypingPayload{ChatID: chatID, IsTyping: true})
	f := readWSFrame(t, ws1)
	require.Equal(t, FrameTyping, f.Type)
	var typing TypingBroadcastPayload
	require.NoError(t, json.Unmarshal(f.Payload, &typing))
	assert.Equal(t, int64(2), typing.UserID)
	assert.True(t, typing.IsTyping)
}

func TestHandleWS_InvalidFramesAreDroppedSilently(t *testing.T) {
	srv, b, chatID := newTestServer(t)

	header := http.Header{"Authorization": []string{"Bearer " + token(t, 1)}}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	sendFrame(t, ws, "presence:update", RoomPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return b.Stats().Dropped[ReasonInvalidFrame] == 2 }, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, ws, FrameChatJoin, RoomPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return b.RoomSize(chatID) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleWS_DisconnectLeavesRooms(t *testing.T) {
	srv, b, chatID := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token(t, 2), nil)
	require.NoError(t, err)

	sendFrame(t, ws, FrameChatJoin, RoomPayload{ChatID: chatID})
	require.Eventually(t, func() bool { return b.RoomSize(chatID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		return b.RoomSize(chatID) == 0 && b.Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}
