// Package api provides HTTP handlers for the modelchat API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/modelchat/internal/chatlog"
	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/observe"
	"github.com/ashureev/modelchat/internal/router"
	"github.com/ashureev/modelchat/internal/store"
)

// Completer routes chat messages. *router.Router implements it.
type Completer interface {
	Complete(ctx context.Context, req router.Request) (*router.Outcome, error)
	Models() []domain.ModelSpec
	Model(id string) (domain.ModelSpec, bool)
	DefaultModel() string
	DefaultLocale() router.Locale
}

// RateLimiter throttles chat requests per user. *middleware.UserLimiter
// implements it.
type RateLimiter interface {
	Allow(userID string) bool
	Middleware(next http.Handler) http.Handler
}

type unlimited struct{}

func (unlimited) Allow(string) bool { return true }
func (unlimited) Middleware(next http.Handler) http.Handler { return next }

// Deps are the collaborators of a Handler.
type Deps struct {
	Repo       store.Repository
	Router     Completer
	Transcript chatlog.Logger
	Metrics    *observe.Metrics
	// MaxBodyBytes caps JSON request bodies and websocket frames.
	MaxBodyBytes int64
	// AllowedOrigins are accepted websocket origins; "*" accepts any.
	AllowedOrigins []string
	// Limiter throttles chat requests and websocket chat frames per user.
	// Optional.
	Limiter RateLimiter
}

// Handler serves the chat API.
type Handler struct {
	repo       store.Repository
	router     Completer
	transcript chatlog.Logger
	metrics    *observe.Metrics
	maxBody    int64
	origins    []string
	limiter    RateLimiter
	sockets    *SocketRegistry
	now        func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		repo:       d.Repo,
		router:     d.Router,
		transcript: d.Transcript,
		metrics:    d.Metrics,
		maxBody:    d.MaxBodyBytes,
		origins:    d.AllowedOrigins,
		limiter:    d.Limiter,
		sockets:    NewSocketRegistry(),
		now:        time.Now,
	}
	if h.transcript == nil {
		h.transcript = chatlog.Nop{}
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.maxBody <= 0 {
		h.maxBody = 1 << 20
	}
	if h.limiter == nil {
		h.limiter = unlimited{}
	}
	return h
}

// Sockets returns the registry of open chat websockets.
func (h *Handler) Sockets() *SocketRegistry {
	return h.sockets
}

// RegisterRoutes registers API routes. Every route requires an identity.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(identity.RequireUser)
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/models", h.ListModels)

		r.With(h.limiter.Middleware).Post("/chat", h.SendChatMessage)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Post("/", h.CreateConversation)
			r.Get("/{id}", h.GetConversation)
			r.Patch("/{id}", h.RenameConversation)
			r.Delete("/{id}", h.DeleteConversation)
			r.With(h.limiter.Middleware).Post("/{id}/messages", h.PostMessage)
		})
	})
	r.With(identity.RequireUser).Get("/ws/chat", h.ServeChatSocket)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v
// untouched.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// localeFor picks the request locale: explicit value, then Accept-Language,
// then the router default.
func (h *Handler) localeFor(r *http.Request, explicit string) router.Locale {
	if l, ok := router.ParseLocale(explicit); ok {
		return l
	}
	if al := strings.TrimSpace(r.Header.Get("Accept-Language")); al != "" {
		return router.NegotiateLocale(al, h.router.DefaultLocale())
	}
	return h.router.DefaultLocale()
}
