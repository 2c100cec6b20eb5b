// Package identity establishes who is making a request: a user asserted by a
// trusted OAuth proxy, or an anonymous per-device identity kept in a cookie.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/modelchat/internal/domain"
)

const (
	AnonCookieName     = "modelchat_anon_id"
	ForwardedEmailName = "X-Forwarded-Email"
	ForwardedUserName  = "X-Forwarded-User"
	anonCookieMaxAge   = 30 * 24 * time.Hour
	lastSeenResolution = 5 * time.Minute
)

type contextKey int

const identityKey contextKey = iota

var anonIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)

// UserStore is the subset of store.Repository the middleware needs.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
}

// Identity describes the caller of a request.
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// Options controls which identity sources are accepted.
type Options struct {
	TrustProxyHeaders bool
	AllowAnonymous    bool
	// SecureCookie marks the anonymous cookie Secure. Disabled in development.
	SecureCookie bool
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity attached by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func deriveUsername(userID string) string {
	if len(userID) > 13 {
		return "anon-" + userID[len(userID)-8:]
	}
	return "anon-user"
}

// fromProxy reads the identity asserted by an OAuth proxy. The email is the
// stable key; the user header is only a display name.
func fromProxy(r *http.Request) (Identity, bool) {
	email := strings.ToLower(strings.TrimSpace(r.Header.Get(ForwardedEmailName)))
	user := strings.TrimSpace(r.Header.Get(ForwardedUserName))
	switch {
	case email != "":
		if user == "" {
			user, _, _ = strings.Cut(email, "@")
		}
		return Identity{UserID: "user_" + email, Username: user, Email: email}, true
	case user != "":
		return Identity{UserID: "user_" + user, Username: user}, true
	default:
		return Identity{}, false
	}
}

func setAnonCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, secure)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, secure)
	return id, nil
}

// ensureUser creates the user record on first sight and refreshes profile
// fields and last_seen_at afterwards.
func ensureUser(ctx context.Context, repo UserStore, id Identity) error {
	now := time.Now()
	user, err := repo.GetUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return repo.UpsertUser(ctx, &domain.User{
			UserID:     id.UserID,
			Username:   id.Username,
			Email:      id.Email,
			Anonymous:  id.Anonymous,
			LastSeenAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if user.Username != id.Username || user.Email != id.Email {
		user.Username = id.Username
		user.Email = id.Email
		user.LastSeenAt = now
		user.UpdatedAt = now
		return repo.UpsertUser(ctx, user)
	}
	if user.IdleFor(now) >= lastSeenResolution {
		return repo.UpdateLastSeen(ctx, id.UserID, now)
	}
	return nil
}

// Middleware attaches the request identity. Proxy headers win over the
// anonymous cookie. Requests with no acceptable identity pass through
// without one; RequireUser rejects them where a user is needed.
func Middleware(repo UserStore, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id Identity
				ok bool
			)
			if opts.TrustProxyHeaders {
				id, ok = fromProxy(r)
			}
			if !ok && opts.AllowAnonymous {
				anonID, err := getOrCreateAnonID(w, r, opts.SecureCookie)
				if err != nil {
					http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
					return
				}
				id = Identity{UserID: anonID, Username: deriveUsername(anonID), Anonymous: true}
				ok = true
			}
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if err := ensureUser(r.Context(), repo, id); err != nil {
				slog.Error("Failed to initialize user", "error", err, "user_id", id.UserID)
				http.Error(w, `{"error":"failed to initialize user"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser rejects requests that carry no identity with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
