package domain

import "time"

// Lifecycle status flags stored per booking. Each flag is flipped
// independently as the corresponding action completes.
const (
	StatusInviteEmailToSeeker = "invite-email-to-seeker"
	StatusInviteEmailToHealer = "invite-email-to-healer"
	StatusConfirmedByHealer   = "booking-confirmed-by-healer"
	StatusCompleteByHealer    = "booking-marked-as-complete-by-healer"
	StatusCompleteBySeeker    = "booking-marked-as-complete-by-seeker"
)

type Booking struct {
	ID              string
	ListingID       string
	ListingTitle    string
	HealerID        string
	HealerName      string
	HealerEmail     string
	SeekerID        string
	SeekerName      string
	SeekerEmail     string
	Amount          int64
	Currency        string
	SessionLength   string
	Format          string
	Modality        string
	PaymentIntentID string
	PaymentStatus   string
	SessionDate     time.Time
	SessionTime     string
	Timezone        string
	Reminders       map[string]bool
	Status          map[string]bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReminderSent reports whether the reminder for the given window label has
// already been dispatched for this booking.
func (b *Booking) ReminderSent(label string) bool {
	return b.Reminders != nil && b.Reminders[label]
}

func NewStatusFlags() map[string]bool {
	return map[string]bool{
		StatusInviteEmailToSeeker: false,
		StatusInviteEmailToHealer: false,
		StatusConfirmedByHealer:   false,
		StatusCompleteByHealer:    false,
		StatusCompleteBySeeker:    false,
	}
}
