package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/kitcasinillo/backend-server/internal/domain"
)

// DigestBody renders the plain-text digest listing every conversation with
// unread messages and the relative age of the newest one.
func DigestBody(name string, role domain.Role, summaries []UnreadSummary, now time.Time) string {
	totalUnread := 0
	for _, s := range summaries {
		totalUnread += s.UnreadCount
	}

	counterpartyLabel := "Healer"
	if role == domain.RoleHealer {
		counterpartyLabel = "Seeker"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "You have %d unread message%s across %d conversation%s.\n\n",
		totalUnread, plural(totalUnread), len(summaries), plural(len(summaries)))
	for _, s := range summaries {
		fmt.Fprintf(&b, "- %s\n  %s: %s\n  Unread messages: %d\n  Last message: %s\n",
			s.ListingTitle, counterpartyLabel, s.OtherPartyName, s.UnreadCount, TimeAgo(s.LastMessageTime, now))
	}
	b.WriteString("\nVisit your dashboard to read and reply.\n")
	return b.String()
}

// TimeAgo formats how long ago a moment happened, in coarse buckets.
func TimeAgo(t, now time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "Just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	}
	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	}
	return t.Format("Jan 2, 2006")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
