package api

import (
	"net/http"

	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/router"
)

// GetMe returns the current user's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())

	user, err := h.repo.GetUser(r.Context(), id.UserID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"user_id":      user.UserID,
		"username":     user.Username,
		"display_name": user.DisplayName(),
		"email":        user.Email,
		"anonymous":    user.Anonymous,
		"created_at":   user.CreatedAt,
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"default_model":  h.router.DefaultModel(),
		"locales":        router.Locales(),
		"default_locale": h.router.DefaultLocale(),
		"locale":         h.localeFor(r, r.URL.Query().Get("locale")),
	})
}

// ListModels returns the models that have a configured backend.
func (h *Handler) ListModels(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"models":  h.router.Models(),
		"default": h.router.DefaultModel(),
	})
}
