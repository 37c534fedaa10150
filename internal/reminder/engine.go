package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/dispatch"
	"github.com/kitcasinillo/backend-server/internal/domain"
)

type BookingSource interface {
	ListSessionsBetween(ctx context.Context, start, end time.Time) ([]domain.Booking, error)
	SetReminderMarker(ctx context.Context, bookingID, label string) error
}

type Dispatcher interface {
	Send(ctx context.Context, event string, payload map[string]any, opts *dispatch.SendOptions) (*dispatch.Result, error)
}

type Result struct {
	Success        bool   `json:"success"`
	TotalReminders int    `json:"totalReminders"`
	Errors         int    `json:"errors"`
	Error          string `json:"error,omitempty"`
}

// Engine sends at most one session.reminder per booking and window. The
// persisted marker makes overlapping sweeps and restarts idempotent; the
// marker is written only after a successful dispatch, so a crash in between
// can produce a duplicate send, which the at-least-once contract allows.
type Engine struct {
	bookings        BookingSource
	dispatcher      Dispatcher
	windows         []Window
	width           time.Duration
	defaultTimezone string
}

func NewEngine(bookings BookingSource, dispatcher Dispatcher, cfg config.RemindersConfig) *Engine {
	return &Engine{
		bookings:        bookings,
		dispatcher:      dispatcher,
		windows:         ParseWindows(cfg.Windows),
		width:           time.Duration(cfg.WindowWidthMinutes) * time.Minute,
		defaultTimezone: cfg.DefaultTimezone,
	}
}

// Run performs one sweep over all configured windows. A failure on one
// booking or one window is counted and logged but never aborts the rest.
func (e *Engine) Run(ctx context.Context) Result {
	if e.bookings == nil {
		log.Printf("booking store not initialized, skipping session reminders")
		return Result{Success: false, Error: "unavailable"}
	}

	now := time.Now()
	totalReminders := 0
	errorCount := 0

	for _, win := range e.windows {
		rangeStart := now.Add(win.Offset)
		rangeEnd := rangeStart.Add(e.width)

		bookings, err := e.bookings.ListSessionsBetween(ctx, rangeStart, rangeEnd)
		if err != nil {
			errorCount++
			log.Printf("reminder window %s query failed: %v", win.Label, err)
			continue
		}

		for i := range bookings {
			b := &bookings[i]
			if b.ReminderSent(win.Label) {
				continue
			}
			if b.SeekerEmail == "" || b.HealerEmail == "" || b.SessionDate.IsZero() {
				continue
			}

			sent, err := e.remind(ctx, b, win)
			if sent {
				totalReminders++
			}
			if err != nil {
				errorCount++
				log.Printf("session.reminder error for %s (%s): %v", b.ID, win.Label, err)
			}
		}
	}

	if totalReminders > 0 {
		log.Printf("session reminders sent: %d", totalReminders)
	} else {
		log.Printf("no session reminders due in current windows")
	}
	if errorCount > 0 {
		log.Printf("session reminder errors: %d", errorCount)
	}
	return Result{Success: true, TotalReminders: totalReminders, Errors: errorCount}
}

func (e *Engine) remind(ctx context.Context, b *domain.Booking, win Window) (bool, error) {
	tz := b.Timezone
	if tz == "" {
		tz = e.defaultTimezone
	}
	payload := map[string]any{
		"bookingId": b.ID,
		"seeker": map[string]any{
			"name":  nameOr(b.SeekerName, "Seeker"),
			"email": b.SeekerEmail,
		},
		"healer": map[string]any{
			"name":  nameOr(b.HealerName, "Healer"),
			"email": b.HealerEmail,
		},
		"sessionDate": b.SessionDate.UTC().Format(time.RFC3339),
		"timezone":    tz,
	}

	result, err := e.dispatcher.Send(ctx, "session.reminder", payload, &dispatch.SendOptions{
		IdempotencyKey: fmt.Sprintf("session.reminder:%s:%s", b.ID, win.Label),
		Source:         "backend:cron",
		Retry:          &dispatch.RetryOptions{Retries: 2, Backoff: 500 * time.Millisecond},
	})
	if err != nil {
		return false, err
	}
	if !result.Sent {
		log.Printf("session.reminder not sent for %s (%s): %s", b.ID, win.Label, result.Reason)
		return false, nil
	}

	// Marker write comes after the send. A marker failure counts as an
	// error but the reminder itself already went out.
	if err := e.bookings.SetReminderMarker(ctx, b.ID, win.Label); err != nil {
		return true, fmt.Errorf("persist reminder marker: %w", err)
	}
	return true, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
