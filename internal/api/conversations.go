package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/observe"
	"github.com/ashureev/modelchat/internal/router"
	"github.com/ashureev/modelchat/internal/store"
)

const maxTitleRunes = 200

type createConversationRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
	Locale  string `json:"locale"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type postMessageRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
	Locale  string `json:"locale"`
}

type postMessageResponse struct {
	chatResponse
	ConversationID   string         `json:"conversation_id"`
	UserMessage      domain.Message `json:"user_message"`
	AssistantMessage domain.Message `json:"assistant_message"`

	outcome *router.Outcome
}

// ListConversations lists the caller's conversations, newest first. ?q=
// filters by title or message content; ?grouped=true buckets by date.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	q := r.URL.Query()

	convs, err := h.repo.SearchConversations(r.Context(), userID, q.Get("q"))
	if err != nil {
		observe.Logger(r.Context()).Error("Failed to list conversations", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	if grouped, _ := strconv.ParseBool(q.Get("grouped")); grouped {
		JSON(w, http.StatusOK, map[string]any{
			"groups": domain.GroupByDate(convs, h.now()),
			"order":  domain.DateGroups,
		})
		return
	}
	JSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// CreateConversation starts an empty conversation titled after its first
// message.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req createConversationRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	model := req.Model
	if model == "" {
		model = h.router.DefaultModel()
	}
	if _, ok := h.router.Model(model); !ok {
		Error(w, http.StatusBadRequest, "unknown model: "+model)
		return
	}

	title := router.DefaultTitle(h.localeFor(r, req.Locale))
	conv := domain.NewConversation(userID, model, req.Message, title, h.now())
	if err := h.repo.CreateConversation(r.Context(), conv); err != nil {
		observe.Logger(r.Context()).Error("Failed to create conversation", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	JSON(w, http.StatusCreated, conv)
}

// GetConversation returns a conversation with its messages.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	conv, err := h.repo.GetConversation(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, err, "failed to load conversation")
		return
	}
	JSON(w, http.StatusOK, conv)
}

// RenameConversation replaces a conversation title.
func (h *Handler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req renameRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		Error(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.RenameConversation(r.Context(), userID, id, title); err != nil {
		h.writeStoreError(w, r, err, "failed to rename conversation")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": id, "title": title})
}

// DeleteConversation removes a conversation.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if err := h.repo.DeleteConversation(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, r, err, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errStore marks persistence failures inside a chat exchange.
var errStore = errors.New("store failure")

// PostMessage routes a message using the stored history and persists both
// turns. The conversation model becomes the model that answered.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req postMessageRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.continueConversation(r.Context(), userID, chi.URLParam(r, "id"), req.Message, req.Model, h.localeFor(r, req.Locale))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logTurn(turn{
		userID:         userID,
		conversationID: resp.ConversationID,
		channel:        "chat_http",
		requestID:      chiMiddleware.GetReqID(r.Context()),
		message:        req.Message,
		outcome:        resp.outcome,
	})
	JSON(w, http.StatusOK, resp)
}

// continueConversation routes message with the stored history of convID and
// appends the user turn and the reply.
func (h *Handler) continueConversation(ctx context.Context, userID, convID, message, model string, locale router.Locale) (*postMessageResponse, error) {
	conv, err := h.repo.GetConversation(ctx, userID, convID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errStore, err)
	}
	if model == "" {
		model = conv.Model
	}

	userMsg := domain.NewMessage(domain.RoleUser, message, h.now())
	out, err := h.router.Complete(ctx, router.Request{
		Message: message,
		History: conv.Messages,
		Model:   model,
		Locale:  locale,
	})
	if err != nil {
		return nil, err
	}

	reply := domain.NewMessage(domain.RoleAssistant, out.Render(), h.now())
	if err := h.repo.AppendMessages(ctx, userID, convID, out.Model, userMsg, reply); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errStore, err)
	}

	return &postMessageResponse{
		chatResponse:     newChatResponse(out),
		ConversationID:   convID,
		UserMessage:      userMsg,
		AssistantMessage: reply,
		outcome:          out,
	}, nil
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, store.ErrConversationNotFound) {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	observe.Logger(r.Context()).Error("Store operation failed", "error", err, "op", msg)
	Error(w, http.StatusInternalServerError, msg)
}
