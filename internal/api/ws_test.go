package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/middleware"
)

func dialChat(t *testing.T, env *testEnv) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(env.mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/chat", &websocket.DialOptions{
		HTTPHeader: http.Header{identity.ForwardedEmailName: {testEmail}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn, ctx
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) wsOutbound {
	t.Helper()
	var f wsOutbound
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func TestChatSocketPingAndChat(t *testing.T) {
	env := newTestEnv(t)
	conn, ctx := dialChat(t, env)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "ping", ID: "p1"}))
	assert.Equal(t, wsOutbound{Type: "pong", ID: "p1"}, readFrame(t, ctx, conn))

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "c1", Message: "merhaba"}))
	f := readFrame(t, ctx, conn)
	assert.Equal(t, "message", f.Type)
	assert.Equal(t, "c1", f.ID)
	assert.Equal(t, "reply from gpt-4o", f.Message)
	assert.Equal(t, "gpt-4o", f.RequestedModel)
}

func TestChatSocketRejectsInvalidFramesWithoutClosing(t *testing.T) {
	env := newTestEnv(t)
	conn, ctx := dialChat(t, env)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, "error", readFrame(t, ctx, conn).Type)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "c1", Message: " "}))
	f := readFrame(t, ctx, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "c1", f.ID)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, ctx, conn).Type)
}

func TestChatSocketOneRequestInFlight(t *testing.T) {
	env := newTestEnv(t)
	env.text.Delay = 300 * time.Millisecond
	conn, ctx := dialChat(t, env)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "first", Message: "bir"}))
	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "second", Message: "iki"}))

	busy := readFrame(t, ctx, conn)
	assert.Equal(t, wsOutbound{Type: "busy", ID: "second"}, busy)

	reply := readFrame(t, ctx, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "first", reply.ID)
	assert.Len(t, env.text.Calls(), 1)
}

func TestChatSocketSharesUserRateLimit(t *testing.T) {
	limiter := middleware.NewUserLimiter(0.001, 1, time.Minute)
	env := newTestEnv(t, func(d *Deps) { d.Limiter = limiter })
	conn, ctx := dialChat(t, env)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "c1", Message: "merhaba"}))
	assert.Equal(t, "message", readFrame(t, ctx, conn).Type)

	for _, id := range []string{"c2", "c3"} {
		require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: id, Message: "tekrar"}))
		f := readFrame(t, ctx, conn)
		assert.Equal(t, "rate_limited", f.Type)
		assert.Equal(t, id, f.ID)
	}
	assert.Len(t, env.text.Calls(), 1)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "ping", ID: "p1"}))
	assert.Equal(t, "pong", readFrame(t, ctx, conn).Type)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"merhaba"}`))
	req.Header.Set(identity.ForwardedEmailName, testEmail)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, env.text.Calls(), 1)
}

func TestChatSocketPersistsConversationTurns(t *testing.T) {
	env := newTestEnv(t)
	conn, ctx := dialChat(t, env)

	userID := "user_" + testEmail
	conv := domain.NewConversation(userID, "gpt-4o", "selam", "Yeni Sohbet", time.Now())
	require.NoError(t, env.repo.CreateConversation(ctx, conv))

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "c1", Message: "selam", ConversationID: conv.ID}))
	f := readFrame(t, ctx, conn)
	require.Equal(t, "message", f.Type, f.Error)
	assert.Equal(t, conv.ID, f.ConversationID)

	stored, err := env.repo.GetConversation(ctx, userID, conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "selam", stored.Messages[0].Content)
	assert.Equal(t, "reply from gpt-4o", stored.Messages[1].Content)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "c2", Message: "x", ConversationID: "missing"}))
	f = readFrame(t, ctx, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "conversation not found", f.Error)
}

func TestChatSocketDisconnectCancelsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.text.Delay = 5 * time.Second
	conn, ctx := dialChat(t, env)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "chat", ID: "slow", Message: "bekle"}))
	require.Eventually(t, func() bool { return len(env.text.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, env.handler.Sockets().Count("user_"+testEmail))

	_ = conn.Close(websocket.StatusNormalClosure, "bye")

	assert.Eventually(t, func() bool {
		return env.handler.Sockets().Count("user_"+testEmail) == 0
	}, 2*time.Second, 10*time.Millisecond, "in-flight request should be canceled on disconnect")
}

func TestOriginPatterns(t *testing.T) {
	h := NewHandler(Deps{AllowedOrigins: []string{"https://chat.example.com", "http://localhost:5173"}})
	assert.Equal(t, []string{"chat.example.com", "localhost:5173"}, h.originPatterns())

	h = NewHandler(Deps{AllowedOrigins: []string{"https://chat.example.com", "*"}})
	assert.Equal(t, []string{"*"}, h.originPatterns())
}
