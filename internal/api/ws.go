package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/router"
	"github.com/ashureev/modelchat/internal/store"
)

const wsWriteTimeout = 10 * time.Second

// wsInbound is a client frame on /ws/chat.
type wsInbound struct {
	Type           string           `json:"type"`
	ID             string           `json:"id,omitempty"`
	Message        string           `json:"message,omitempty"`
	History        []historyMessage `json:"history,omitempty"`
	Model          string           `json:"model,omitempty"`
	Locale         string           `json:"locale,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

// wsOutbound is a server frame on /ws/chat.
type wsOutbound struct {
	Type           string        `json:"type"`
	ID             string        `json:"id,omitempty"`
	Message        string        `json:"message,omitempty"`
	Notice         string        `json:"notice,omitempty"`
	Model          string        `json:"model,omitempty"`
	RequestedModel string        `json:"requestedModel,omitempty"`
	Fallback       bool          `json:"fallback,omitempty"`
	Source         router.Source `json:"source,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Error          string        `json:"error,omitempty"`
	Details        string        `json:"details,omitempty"`
}

// chatSocket is one websocket connection. At most one chat request is in
// flight, and each one draws from the user's rate limit; the connection
// context cancels it when the client disconnects.
type chatSocket struct {
	h      *Handler
	conn   *websocket.Conn
	userID string
	locale router.Locale

	mu   sync.Mutex
	busy bool
	wg   sync.WaitGroup
}

// ServeChatSocket upgrades to a websocket carrying chat frames.
func (h *Handler) ServeChatSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		slog.Warn("Failed to accept chat websocket", "error", err, "user_id", userID)
		return
	}
	conn.SetReadLimit(h.maxBody)
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close chat websocket", "error", closeErr, "user_id", userID)
		}
	}()

	if !h.sockets.Register(userID, conn) {
		_ = conn.Close(websocket.StatusPolicyViolation, "too many connections")
		return
	}
	defer h.sockets.Unregister(userID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.metrics.ActiveSockets.Add(ctx, 1)
	defer h.metrics.ActiveSockets.Add(context.Background(), -1)

	s := &chatSocket{h: h, conn: conn, userID: userID, locale: h.localeFor(r, r.URL.Query().Get("locale"))}
	slog.Info("Chat socket opened", "user_id", userID)
	s.readLoop(ctx)
	cancel()
	s.wg.Wait()
	slog.Info("Chat socket closed", "user_id", userID)
}

func (h *Handler) originPatterns() []string {
	patterns := make([]string, 0, len(h.origins))
	for _, o := range h.origins {
		if o == "*" {
			return []string{"*"}
		}
		// Accept matches on host, so strip the scheme.
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		patterns = append(patterns, o)
	}
	return patterns
}

func (s *chatSocket) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("Chat socket closed by client", "user_id", s.userID)
			} else {
				slog.Warn("Chat socket read error", "error", err, "user_id", s.userID)
			}
			return
		}

		var frame wsInbound
		if err := json.Unmarshal(data, &frame); err != nil {
			s.write(ctx, wsOutbound{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case "ping":
			s.write(ctx, wsOutbound{Type: "pong", ID: frame.ID})
		case "chat":
			if !s.tryAcquire() {
				s.write(ctx, wsOutbound{Type: "busy", ID: frame.ID})
				continue
			}
			if !s.h.limiter.Allow(s.userID) {
				s.release()
				s.write(ctx, wsOutbound{Type: "rate_limited", ID: frame.ID, Error: "rate limit exceeded"})
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.release()
				s.handleChat(ctx, frame)
			}()
		default:
			s.write(ctx, wsOutbound{Type: "error", ID: frame.ID, Error: "unknown frame type"})
		}
	}
}

func (s *chatSocket) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *chatSocket) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *chatSocket) handleChat(ctx context.Context, frame wsInbound) {
	h := s.h
	locale := s.locale
	if l, ok := router.ParseLocale(frame.Locale); ok {
		locale = l
	}

	var (
		out    *router.Outcome
		convID = frame.ConversationID
		err    error
	)
	if convID != "" {
		var resp *postMessageResponse
		resp, err = h.continueConversation(ctx, s.userID, convID, frame.Message, frame.Model, locale)
		if resp != nil {
			out = resp.outcome
		}
	} else {
		var history []domain.Message
		history, err = toDomainHistory(frame.History)
		if err == nil {
			out, err = h.router.Complete(ctx, router.Request{
				Message: frame.Message,
				History: history,
				Model:   frame.Model,
				Locale:  locale,
			})
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Chat request abandoned", "user_id", s.userID, "error", err)
			return
		}
		s.write(ctx, s.errorFrame(frame.ID, locale, err))
		return
	}

	h.logTurn(turn{
		userID:         s.userID,
		conversationID: convID,
		channel:        "chat_ws",
		requestID:      frame.ID,
		message:        frame.Message,
		outcome:        out,
	})
	s.write(ctx, wsOutbound{
		Type:           "message",
		ID:             frame.ID,
		Message:        out.Render(),
		Notice:         out.Notice,
		Model:          out.Model,
		RequestedModel: out.RequestedModel,
		Fallback:       out.FallbackUsed,
		Source:         out.Source,
		ConversationID: convID,
	})
}

func (s *chatSocket) errorFrame(id string, locale router.Locale, err error) wsOutbound {
	f := wsOutbound{Type: "error", ID: id}
	switch {
	case errors.Is(err, store.ErrConversationNotFound):
		f.Error = "conversation not found"
	case isClientError(err):
		f.Error = err.Error()
	case errors.Is(err, errStore):
		slog.Error("Failed to persist chat exchange", "error", err, "user_id", s.userID)
		f.Error = "failed to save messages"
	default:
		slog.Error("Chat routing failed", "error", err, "user_id", s.userID)
		f.Error = router.ServerErrorMessage(locale)
		f.Details = err.Error()
	}
	return f
}

func (s *chatSocket) write(ctx context.Context, v wsOutbound) {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, s.conn, v); err != nil {
		slog.Debug("Failed to write chat frame", "error", err, "user_id", s.userID, "type", v.Type)
	}
}
