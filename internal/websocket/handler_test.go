package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pulse-chat/internal/events"
	"pulse-chat/internal/services"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type staticTokens map[string]uuid.UUID

func (s staticTokens) ParseAccessToken(token string) (services.AccessClaims, error) {
	userID, ok := s[token]
	if !ok {
		return services.AccessClaims{}, pulse_errors.ErrUnauthorized
	}
	return services.AccessClaims{UserID: userID.String()}, nil
}

type recordingFrames struct {
	mu     sync.Mutex
	frames []InboundFrame
	err    error
}

func (r *recordingFrames) HandleFrame(_ context.Context, _ *Client, frame InboundFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return r.err
}

func (r *recordingFrames) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type wsFixture struct {
	server     *httptest.Server
	registry   *Registry
	dispatcher *Dispatcher
	frames     *recordingFrames
	userID     uuid.UUID
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &wsFixture{
		registry: NewRegistry(RegistryHooks{}),
		frames:   &recordingFrames{},
		userID:   uuid.New(),
	}
	f.dispatcher = NewDispatcher(f.registry, nil, "node-a", nil)
	h := NewHandler(staticTokens{"good": f.userID}, f.registry, f.frames, NewLogger(nil), []string{"*"})

	router := gin.New()
	router.GET("/ws", h.Connect)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestConnectRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := f.dial(t, "bad")
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = f.dial(t, "")
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectPingAndEvents(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := f.dial(t, "good")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.registry.IsOnline(f.userID) }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, "pong", readJSON(t, conn)["type"])

	payload := events.StatusPayload{MessageID: uuid.New(), Status: "read", UserID: uuid.New()}
	require.NoError(t, f.dispatcher.SendEventToUser(context.Background(), f.userID, events.MessageStatus, payload))

	ev := readJSON(t, conn)
	require.Equal(t, events.MessageStatus, ev["event"])
	data := ev["data"].(map[string]any)
	require.Equal(t, payload.MessageID.String(), data["messageId"])
	require.Equal(t, "read", data["status"])
}

func TestInboundFramesReachHandler(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := f.dial(t, "good")
	require.NoError(t, err)
	defer conn.Close()

	messageID := uuid.New()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": events.FrameMessageDelivered, "messageId": messageID.String()}))
	require.Eventually(t, func() bool { return f.frames.count() == 1 }, time.Second, 10*time.Millisecond)

	f.frames.mu.Lock()
	got := f.frames.frames[0]
	f.frames.mu.Unlock()
	require.Equal(t, messageID, got.MessageID)

	f.frames.mu.Lock()
	f.frames.err = pulse_errors.ErrForbidden
	f.frames.mu.Unlock()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": events.FrameMessageRead, "messageId": messageID.String()}))

	reply := readJSON(t, conn)
	require.Equal(t, events.FrameError, reply["type"])
	require.Equal(t, events.FrameMessageRead, reply["ref"])
}

func TestDisconnectUnregisters(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := f.dial(t, "good")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.registry.IsOnline(f.userID) }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !f.registry.IsOnline(f.userID) }, 2*time.Second, 10*time.Millisecond)
}
