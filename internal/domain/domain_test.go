package domain

import (
	"strings"
	"testing"
	"time"
)

func TestChatTitle(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 60)
	tests := []struct {
		name  string
		first string
		want  string
	}{
		{name: "blank uses default", first: "   ", want: "Yeni Sohbet"},
		{name: "trimmed", first: "  merhaba  ", want: "merhaba"},
		{name: "exactly fifty", first: strings.Repeat("b", 50), want: strings.Repeat("b", 50)},
		{name: "truncated", first: long, want: strings.Repeat("a", 47) + "..."},
		{name: "runes not bytes", first: strings.Repeat("ç", 51), want: strings.Repeat("ç", 47) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ChatTitle(tt.first, "Yeni Sohbet"); got != tt.want {
				t.Fatalf("ChatTitle(%q) = %q, want %q", tt.first, got, tt.want)
			}
		})
	}
}

func TestNewConversation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewConversation("u1", "gpt-4o", "bir kedi çiz", "New Chat", now)
	if c.ID == "" {
		t.Fatal("expected generated id")
	}
	if c.Title != "bir kedi çiz" {
		t.Fatalf("Title = %q", c.Title)
	}
	if !c.CreatedAt.Equal(now) || !c.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", c.CreatedAt, c.UpdatedAt, now)
	}
}

func TestGroupOf(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want DateGroup
	}{
		{now, GroupToday},
		{time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), GroupToday},
		{time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC), GroupYesterday},
		{time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), GroupYesterday},
		{time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC), GroupLast7Days},
		{time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), GroupLast7Days},
		{time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), GroupOlder},
	}
	for _, tt := range tests {
		if got := GroupOf(tt.at, now); got != tt.want {
			t.Errorf("GroupOf(%v) = %s, want %s", tt.at, got, tt.want)
		}
	}
}

func TestGroupByDateKeepsEveryBucket(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	convs := []*Conversation{
		{ID: "a", UpdatedAt: now},
		{ID: "b", UpdatedAt: now.Add(-time.Hour)},
		{ID: "c", UpdatedAt: now.AddDate(0, -1, 0)},
	}

	groups := GroupByDate(convs, now)
	if len(groups) != len(DateGroups) {
		t.Fatalf("got %d groups, want %d", len(groups), len(DateGroups))
	}
	if ids := idsOf(groups[GroupToday]); ids != "a,b" {
		t.Fatalf("today = %s, want a,b", ids)
	}
	if len(groups[GroupYesterday]) != 0 {
		t.Fatalf("yesterday should be empty, got %d", len(groups[GroupYesterday]))
	}
	if ids := idsOf(groups[GroupOlder]); ids != "c" {
		t.Fatalf("older = %s, want c", ids)
	}
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Fatal("expected user and assistant to be valid")
	}
	if Role("system").Valid() {
		t.Fatal("system is not a conversation role")
	}
}

func idsOf(convs []*Conversation) string {
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return strings.Join(ids, ",")
}
