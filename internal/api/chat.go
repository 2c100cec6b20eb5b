package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/modelchat/internal/chatlog"
	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/observe"
	"github.com/ashureev/modelchat/internal/router"
	"github.com/ashureev/modelchat/internal/store"
)

// historyMessage is a prior turn supplied by the client.
type historyMessage struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Message string           `json:"message"`
	History []historyMessage `json:"history"`
	Model   string           `json:"model"`
	Locale  string           `json:"locale"`
}

// chatResponse is a routed reply.
type chatResponse struct {
	Message        string        `json:"message"`
	Notice         string        `json:"notice,omitempty"`
	Model          string        `json:"model"`
	RequestedModel string        `json:"requestedModel"`
	Fallback       bool          `json:"fallback"`
	Source         router.Source `json:"source"`
}

func newChatResponse(out *router.Outcome) chatResponse {
	return chatResponse{
		Message:        out.Render(),
		Notice:         out.Notice,
		Model:          out.Model,
		RequestedModel: out.RequestedModel,
		Fallback:       out.FallbackUsed,
		Source:         out.Source,
	}
}

// failureResponse is sent with status 200 when routing failed internally,
// so chat clients render it inline instead of treating it as a transport
// failure.
type failureResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func toDomainHistory(in []historyMessage) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(in))
	for i, m := range in {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: history[%d] has invalid role %q", errBadRequest, i, m.Role)
		}
		out = append(out, domain.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// isClientError reports whether err was caused by the request itself.
func isClientError(err error) bool {
	return errors.Is(err, router.ErrEmptyMessage) ||
		errors.Is(err, router.ErrUnknownModel) ||
		errors.Is(err, errBadRequest)
}

// turn carries one routed exchange to the transcript.
type turn struct {
	userID         string
	conversationID string
	channel        string
	requestID      string
	message        string
	outcome        *router.Outcome
}

func (h *Handler) logTurn(t turn) {
	meta := map[string]any{}
	if t.requestID != "" {
		meta["request_id"] = t.requestID
	}
	conv := t.conversationID
	if conv == "" {
		conv = "stateless"
	}
	h.transcript.Log(chatlog.Event{
		UserID:         t.userID,
		ConversationID: conv,
		Channel:        t.channel,
		Direction:      "inbound",
		EventType:      "chat_user_message",
		ContentRaw:     t.message,
		Meta:           meta,
	})
	if t.outcome == nil {
		return
	}
	h.transcript.Log(chatlog.Event{
		UserID:         t.userID,
		ConversationID: conv,
		Channel:        t.channel,
		Direction:      "outbound",
		EventType:      "chat_assistant_message",
		Model:          t.outcome.Model,
		Source:         string(t.outcome.Source),
		ContentRaw:     t.outcome.Render(),
		Meta:           meta,
	})
}

// SendChatMessage routes a message with client-supplied history.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())

	var req chatRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := toDomainHistory(req.History)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	log := observe.Logger(r.Context())
	log.Info("Chat request",
		"user_id", id.UserID,
		"model", req.Model,
		"message_length", len(req.Message),
		"history_length", len(history),
	)

	out, err := h.router.Complete(r.Context(), router.Request{
		Message: req.Message,
		History: history,
		Model:   req.Model,
		Locale:  h.localeFor(r, req.Locale),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logTurn(turn{
		userID:    id.UserID,
		channel:   "chat_http",
		requestID: chiMiddleware.GetReqID(r.Context()),
		message:   req.Message,
		outcome:   out,
	})
	JSON(w, http.StatusOK, newChatResponse(out))
}

// writeError maps chat exchange errors to responses. Internal routing
// failures are reported with status 200 and an error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrConversationNotFound):
		Error(w, http.StatusNotFound, "conversation not found")
	case isClientError(err):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nobody reads the response.
		slog.Debug("Chat request canceled by client", "error", err)
	case errors.Is(err, errStore):
		observe.Logger(r.Context()).Error("Failed to persist chat exchange", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save messages")
	default:
		observe.Logger(r.Context()).Error("Chat routing failed", "error", err)
		JSON(w, http.StatusOK, failureResponse{
			Error:   router.ServerErrorMessage(h.localeFor(r, "")),
			Details: strings.TrimSpace(err.Error()),
		})
	}
}
