package email

import (
	"fmt"
	"time"

	"github.com/kitcasinillo/backend-server/internal/domain"
)

const (
	HealerInviteSubject = "New Booking Confirmed"
	SeekerInviteSubject = "Your Booking is Confirmed"
)

// HealerInviteBody is the plain-text notification sent to the provider when a
// booking is created.
func HealerInviteBody(b *domain.Booking) string {
	return fmt.Sprintf("Hi %s,\n\nYou have a new booking.\n\n%s\nBooking reference: %s\n\nPlease confirm the session from your dashboard.\n",
		b.HealerName, sessionSummary(b), b.ID)
}

// SeekerInviteBody is the plain-text confirmation sent to the requester.
func SeekerInviteBody(b *domain.Booking) string {
	return fmt.Sprintf("Hi %s,\n\nYour booking with %s is confirmed.\n\n%s\nBooking reference: %s\n",
		b.SeekerName, b.HealerName, sessionSummary(b), b.ID)
}

func sessionSummary(b *domain.Booking) string {
	session := "Session date: to be scheduled"
	if !b.SessionDate.IsZero() {
		session = "Session date: " + b.SessionDate.UTC().Format(time.RFC1123)
	}
	return fmt.Sprintf("Service: %s\n%s\nLength: %s\nFormat: %s", b.ListingTitle, session, b.SessionLength, b.Format)
}
