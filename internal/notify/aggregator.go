package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kitcasinillo/backend-server/internal/domain"
	"github.com/kitcasinillo/backend-server/internal/email"
)

type BookingSource interface {
	ListByParty(ctx context.Context, role domain.Role, userID string) ([]domain.Booking, error)
}

type MessageSource interface {
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Message, error)
}

type ProfileSource interface {
	List(ctx context.Context) ([]domain.Profile, error)
}

type ProfileCache interface {
	GetProfiles(ctx context.Context) ([]domain.Profile, error)
	SetProfiles(ctx context.Context, profiles []domain.Profile) error
}

// UnreadSummary describes one conversation with unread activity for a user.
type UnreadSummary struct {
	BookingID       string    `json:"bookingId"`
	ListingTitle    string    `json:"listingTitle"`
	UnreadCount     int       `json:"unreadCount"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	OtherPartyName  string    `json:"otherPartyName"`
	OtherPartyEmail string    `json:"otherPartyEmail"`
}

type Result struct {
	Success             bool   `json:"success"`
	TotalEmailsSent     int    `json:"totalEmailsSent"`
	HealerNotifications int    `json:"healerNotifications"`
	SeekerNotifications int    `json:"seekerNotifications"`
	Error               string `json:"error,omitempty"`
}

// Aggregator scans each user's conversations for unread messages and sends
// one digest email per user with anything unread.
//
// There is deliberately no "already notified" marker: a conversation that
// stays unread is re-notified on every run, reminder style. Changing that
// requires a persisted marker design this subsystem does not have.
type Aggregator struct {
	bookings BookingSource
	messages MessageSource
	profiles ProfileSource
	cache    ProfileCache
	sender   email.Sender
}

type AggregatorOption func(*Aggregator)

// WithProfileCache makes ProcessAll read the profile roster through the
// cache, falling back to the store on a miss.
func WithProfileCache(cache ProfileCache) AggregatorOption {
	return func(a *Aggregator) { a.cache = cache }
}

func NewAggregator(bookings BookingSource, messages MessageSource, profiles ProfileSource, sender email.Sender, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		bookings: bookings,
		messages: messages,
		profiles: profiles,
		sender:   sender,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UnreadForUser collects the user's conversations that contain messages not
// sent by and not read by them. A failure on one booking's conversation is
// logged and that booking skipped.
func (a *Aggregator) UnreadForUser(ctx context.Context, userID string, role domain.Role) ([]UnreadSummary, error) {
	bookings, err := a.bookings.ListByParty(ctx, role, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s %s: %w", role, userID, err)
	}

	var summaries []UnreadSummary
	for i := range bookings {
		b := &bookings[i]
		messages, err := a.messages.ListByBooking(ctx, b.ID)
		if err != nil {
			log.Printf("error checking messages for booking %s: %v", b.ID, err)
			continue
		}

		unreadCount := 0
		var lastMessageTime time.Time
		for j := range messages {
			if !messages[j].UnreadBy(userID) {
				continue
			}
			unreadCount++
			if messages[j].Timestamp.After(lastMessageTime) {
				lastMessageTime = messages[j].Timestamp
			}
		}
		if unreadCount == 0 {
			continue
		}

		summary := UnreadSummary{
			BookingID:       b.ID,
			ListingTitle:    titleOr(b.ListingTitle),
			UnreadCount:     unreadCount,
			LastMessageTime: lastMessageTime,
		}
		if role == domain.RoleHealer {
			summary.OtherPartyName = nameOr(b.SeekerName, "Unknown Seeker")
			summary.OtherPartyEmail = b.SeekerEmail
		} else {
			summary.OtherPartyName = nameOr(b.HealerName, "Unknown Healer")
			summary.OtherPartyEmail = b.HealerEmail
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ProcessAll runs the per-user scan over every profile and emails digests.
// Per-user failures are logged and skipped; the batch always continues.
func (a *Aggregator) ProcessAll(ctx context.Context) Result {
	if a.profiles == nil {
		log.Printf("profile store not initialized, skipping unread notifications")
		return Result{Success: false, Error: "unavailable"}
	}

	profiles, err := a.loadProfiles(ctx)
	if err != nil {
		log.Printf("error loading profiles: %v", err)
		return Result{Success: false, Error: err.Error()}
	}

	var result Result
	result.Success = true

	for i := range profiles {
		p := &profiles[i]
		role := p.Role
		if role == "" {
			role = domain.RoleSeeker
		}

		summaries, err := a.UnreadForUser(ctx, p.ID, role)
		if err != nil {
			log.Printf("error processing notifications for user %s: %v", p.ID, err)
			continue
		}
		if len(summaries) == 0 {
			continue
		}

		if err := a.sendDigest(ctx, p, role, summaries); err != nil {
			log.Printf("error sending notification to %s %s: %v", role, p.ID, err)
			continue
		}

		result.TotalEmailsSent++
		if role == domain.RoleHealer {
			result.HealerNotifications++
		} else {
			result.SeekerNotifications++
		}
	}

	log.Printf("notification process completed: %d emails sent (%d healer, %d seeker)",
		result.TotalEmailsSent, result.HealerNotifications, result.SeekerNotifications)
	return result
}

func (a *Aggregator) loadProfiles(ctx context.Context) ([]domain.Profile, error) {
	if a.cache != nil {
		if cached, err := a.cache.GetProfiles(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}
	profiles, err := a.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		_ = a.cache.SetProfiles(ctx, profiles)
	}
	return profiles, nil
}

func (a *Aggregator) sendDigest(ctx context.Context, p *domain.Profile, role domain.Role, summaries []UnreadSummary) error {
	if p.Email == "" {
		return fmt.Errorf("no email found for %s %s", role, p.ID)
	}
	subject := fmt.Sprintf("You have %d conversation%s with unread messages", len(summaries), plural(len(summaries)))
	body := DigestBody(p.Name(), role, summaries, time.Now())
	return a.sender.Send(ctx, p.Email, subject, body)
}

func titleOr(title string) string {
	if title == "" {
		return "Untitled Service"
	}
	return title
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
