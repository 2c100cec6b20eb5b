package domain

import "time"

// DateGroup is a recency bucket for conversation lists.
type DateGroup string

// Date groups, newest first.
const (
	GroupToday     DateGroup = "today"
	GroupYesterday DateGroup = "yesterday"
	GroupLast7Days DateGroup = "last7days"
	GroupOlder     DateGroup = "older"
)

// DateGroups lists every bucket in display order.
var DateGroups = []DateGroup{GroupToday, GroupYesterday, GroupLast7Days, GroupOlder}

// GroupOf returns the bucket for t relative to now. Day boundaries are
// calendar days in now's location.
func GroupOf(t, now time.Time) DateGroup {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	t = t.In(loc)

	switch {
	case !t.Before(today):
		return GroupToday
	case !t.Before(today.AddDate(0, 0, -1)):
		return GroupYesterday
	case !t.Before(today.AddDate(0, 0, -7)):
		return GroupLast7Days
	default:
		return GroupOlder
	}
}

// GroupByDate buckets conversations by UpdatedAt. Order within a bucket is
// preserved. Every bucket is present in the result, possibly empty.
func GroupByDate(convs []*Conversation, now time.Time) map[DateGroup][]*Conversation {
	groups := make(map[DateGroup][]*Conversation, len(DateGroups))
	for _, g := range DateGroups {
		groups[g] = []*Conversation{}
	}
	for _, c := range convs {
		g := GroupOf(c.UpdatedAt, now)
		groups[g] = append(groups[g], c)
	}
	return groups
}
