package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/modelchat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedConversation(t *testing.T, s *SQLiteStore, userID, first string, at time.Time) *domain.Conversation {
	t.Helper()
	conv := domain.NewConversation(userID, "gpt-4o", first, "New Chat", at)
	conv.Messages = []domain.Message{domain.NewMessage(domain.RoleUser, first, at)}
	require.NoError(t, s.CreateConversation(context.Background(), conv))
	return conv
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID: "u1", Username: "ayse", Email: "ayse@example.com",
		LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID: "u1", Username: "ayse.k", Anonymous: true,
		LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}))

	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ayse.k", got.Username)
	assert.True(t, got.Anonymous)
	assert.True(t, got.LastSeenAt.Equal(now))

	later := now.Add(time.Hour)
	require.NoError(t, s.UpdateLastSeen(ctx, "u1", later))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(later))

	assert.NoError(t, s.UpdateLastSeen(ctx, "nobody", later))
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute).Truncate(time.Millisecond)

	conv := seedConversation(t, s, "u1", "merhaba", start)
	assert.Equal(t, 1, conv.MessageCount)

	reply := domain.NewMessage(domain.RoleAssistant, "Selam!", start.Add(2*time.Second))
	next := domain.NewMessage(domain.RoleUser, "nasılsın", start.Add(3*time.Second))
	answer := domain.NewMessage(domain.RoleAssistant, "iyiyim", start.Add(4*time.Second))
	require.NoError(t, s.AppendMessages(ctx, "u1", conv.ID, "claude-3-haiku", reply))
	require.NoError(t, s.AppendMessages(ctx, "u1", conv.ID, "", next, answer))

	got, err := s.GetConversation(ctx, "u1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "merhaba", got.Title)
	assert.Equal(t, "claude-3-haiku", got.Model, "blank model keeps the previous one")
	assert.Equal(t, 4, got.MessageCount)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, []string{"merhaba", "Selam!", "nasılsın", "iyiyim"}, contents(got.Messages))
	assert.Equal(t, domain.RoleAssistant, got.Messages[3].Role)
	assert.True(t, got.UpdatedAt.Equal(answer.Timestamp))

	require.NoError(t, s.RenameConversation(ctx, "u1", conv.ID, "Sohbet"))
	got, err = s.GetConversation(ctx, "u1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sohbet", got.Title)

	require.NoError(t, s.DeleteConversation(ctx, "u1", conv.ID))
	_, err = s.GetConversation(ctx, "u1", conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, s.DeleteConversation(ctx, "u1", conv.ID), ErrConversationNotFound)
}

func TestConversationsAreScopedByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv := seedConversation(t, s, "owner", "gizli", time.Now())

	_, err := s.GetConversation(ctx, "intruder", conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	msg := domain.NewMessage(domain.RoleUser, "x", time.Now())
	assert.ErrorIs(t, s.AppendMessages(ctx, "intruder", conv.ID, "", msg), ErrConversationNotFound)
	assert.ErrorIs(t, s.RenameConversation(ctx, "intruder", conv.ID, "t"), ErrConversationNotFound)
	assert.ErrorIs(t, s.DeleteConversation(ctx, "intruder", conv.ID), ErrConversationNotFound)

	list, err := s.ListConversations(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := s.GetConversation(ctx, "owner", conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestListConversationsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	a := seedConversation(t, s, "u1", "first", base)
	b := seedConversation(t, s, "u1", "second", base.Add(time.Minute))
	c := seedConversation(t, s, "u1", "third", base.Add(2*time.Minute))

	// Appending to the oldest moves it to the top.
	require.NoError(t, s.AppendMessages(ctx, "u1", a.ID, "",
		domain.NewMessage(domain.RoleAssistant, "ok", base.Add(3*time.Minute))))

	list, err := s.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, c.ID, b.ID}, ids(list))
	assert.Empty(t, list[0].Messages)
}

func TestSearchConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	byTitle := seedConversation(t, s, "u1", "Python öğrenmek", now)
	byBody := seedConversation(t, s, "u1", "selam", now.Add(time.Second))
	require.NoError(t, s.AppendMessages(ctx, "u1", byBody.ID, "",
		domain.NewMessage(domain.RoleAssistant, "PYTHON ile başlayabilirsin", now.Add(2*time.Second))))
	seedConversation(t, s, "u1", "hava durumu", now.Add(3*time.Second))
	seedConversation(t, s, "u2", "python", now)

	found, err := s.SearchConversations(ctx, "u1", "python")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{byTitle.ID, byBody.ID}, ids(found))

	found, err = s.SearchConversations(ctx, "u1", "ÖĞREN")
	require.NoError(t, err)
	assert.Equal(t, []string{byTitle.ID}, ids(found))

	all, err := s.SearchConversations(ctx, "u1", "   ")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.SearchConversations(ctx, "u1", "kubernetes")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchConversationsFoldsDottedI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	city := seedConversation(t, s, "u1", "İstanbul gezisi", now)
	app := seedConversation(t, s, "u1", "Instagram reklamları", now.Add(time.Second))

	tests := []struct {
		term string
		want []string
	}{
		{"istanbul", []string{city.ID}},
		{"İSTANBUL", []string{city.ID}},
		{"ıstanbul", []string{city.ID}},
		{"instagram", []string{app.ID}},
		{"INSTAGRAM", []string{app.ID}},
		{"reklamlari", []string{app.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			found, err := s.SearchConversations(ctx, "u1", tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(found))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "istanbul", fold("İstanbul"))
	assert.Equal(t, "istanbul", fold("ISTANBUL"))
	assert.Equal(t, "öğren", fold("ÖĞREN"))
}

func TestDeleteStaleConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := seedConversation(t, s, "u1", "eski", now.Add(-48*time.Hour))
	fresh := seedConversation(t, s, "u1", "yeni", now)

	n, err := s.DeleteStaleConversations(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.GetConversation(ctx, "u1", old.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = s.GetConversation(ctx, "u1", fresh.ID)
	assert.NoError(t, err)
}

func TestCreateConversationRejectsInvalidRole(t *testing.T) {
	s := newTestStore(t)
	conv := domain.NewConversation("u1", "gpt-4o", "x", "New Chat", time.Now())
	conv.Messages = []domain.Message{{ID: "m1", Role: "system", Content: "x", Timestamp: time.Now()}}

	require.Error(t, s.CreateConversation(context.Background(), conv))

	list, err := s.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list, "failed insert must roll back")
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestIsConflictError(t *testing.T) {
	assert.True(t, IsConflictError(errString("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsLockedError(errString("database is locked")))
	assert.False(t, IsConflictError(errString("no such table")))
	assert.False(t, IsConflictError(nil))
}

func TestWithBusyRetry(t *testing.T) {
	calls := 0
	err := withBusyRetry(context.Background(), "test", func() error {
		calls++
		if calls < 2 {
			return errString("SQLITE_BUSY")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = withBusyRetry(context.Background(), "test", func() error {
		calls++
		return errString("constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = withBusyRetry(ctx, "test", func() error { return errString("SQLITE_BUSY") })
	assert.ErrorIs(t, err, context.Canceled)
}

type errString string

func (e errString) Error() string { return string(e) }

func contents(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func ids(convs []*domain.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}
