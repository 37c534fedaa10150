package domain

import "time"

// Message is one entry in a booking's conversation. ReadBy maps reader id to
// a read flag; absence counts as unread.
type Message struct {
	ID        string
	BookingID string
	SenderID  string
	Body      string
	Timestamp time.Time
	ReadBy    map[string]bool
}

// UnreadBy reports whether the message is unread from the given user's
// perspective. A user's own messages are never unread.
func (m *Message) UnreadBy(userID string) bool {
	if m.SenderID == userID {
		return false
	}
	return m.ReadBy == nil || !m.ReadBy[userID]
}
