package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/commission"
	"github.com/kitcasinillo/backend-server/internal/dedup"
	"github.com/kitcasinillo/backend-server/internal/dispatch"
	"github.com/kitcasinillo/backend-server/internal/domain"
	"github.com/kitcasinillo/backend-server/internal/email"
	"github.com/kitcasinillo/backend-server/internal/kafka"
)

var (
	ErrMissingPaymentIntent = errors.New("payment intent id is required")
	ErrMissingParties       = errors.New("healer id and seeker id are required")
)

type Repository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Booking, error)
	SetStatusFlag(ctx context.Context, bookingID, flag string, value bool) error
}

// PaymentLocker is the cross-process companion to the in-process in-flight
// guard, usually backed by redis.
type PaymentLocker interface {
	AcquirePaymentLock(ctx context.Context, paymentIntentID string, ttl time.Duration) (bool, error)
	ReleasePaymentLock(ctx context.Context, paymentIntentID string) error
}

type Dispatcher interface {
	Send(ctx context.Context, event string, payload map[string]any, opts *dispatch.SendOptions) (*dispatch.Result, error)
}

type EventPublisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error
}

type CreateBookingInput struct {
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
	SessionDate     time.Time
	SessionTime     string
	Timezone        string
}

type CreateBookingResult struct {
	Booking       *domain.Booking       `json:"booking"`
	Breakdown     *commission.Breakdown `json:"breakdown"`
	AlreadyExists bool                  `json:"alreadyExists"`
}

type BookingUseCase interface {
	Create(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error)
}

// BookingService creates bookings exactly once per payment intent. Duplicate
// submissions are collapsed at three levels: the in-process in-flight guard,
// an optional redis lock across instances, and the persistent lookup by
// payment intent as the authoritative check.
type BookingService struct {
	repo       Repository
	calculator *commission.Calculator
	inflight   *dedup.InFlight
	cfg        config.Config

	locker     PaymentLocker
	dispatcher Dispatcher
	publisher  EventPublisher
	sender     email.Sender
}

type Option func(*BookingService)

func WithPaymentLocker(locker PaymentLocker) Option {
	return func(s *BookingService) { s.locker = locker }
}

func WithDispatcher(dispatcher Dispatcher) Option {
	return func(s *BookingService) { s.dispatcher = dispatcher }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *BookingService) { s.publisher = publisher }
}

func WithEmailSender(sender email.Sender) Option {
	return func(s *BookingService) { s.sender = sender }
}

func NewBookingService(repo Repository, calculator *commission.Calculator, inflight *dedup.InFlight, cfg config.Config, opts ...Option) *BookingService {
	s := &BookingService{
		repo:       repo,
		calculator: calculator,
		inflight:   inflight,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, guards against duplicate submissions for the
// same payment intent, persists the booking and fires the side effects:
// invite emails, the lifecycle event, and the automation webhook. Side effect
// failures are logged but never fail a booking that is already persisted.
func (s *BookingService) Create(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	// The in-flight mark must be taken before the first suspension point so
	// two concurrent requests for the same payment intent cannot interleave.
	if err := s.inflight.Begin(input.PaymentIntentID); err != nil {
		return nil, err
	}
	defer s.inflight.End(input.PaymentIntentID)

	if s.locker != nil {
		ttl := time.Duration(s.cfg.Booking.PaymentLockTTLSeconds) * time.Second
		ok, err := s.locker.AcquirePaymentLock(ctx, input.PaymentIntentID, ttl)
		if err != nil {
			// A degraded lock backend must not block bookings; the
			// persistent duplicate check still holds.
			log.Printf("payment lock unavailable for %s: %v", input.PaymentIntentID, err)
		} else if !ok {
			return nil, dedup.ErrAlreadyInProgress
		} else {
			defer func() {
				if err := s.locker.ReleasePaymentLock(ctx, input.PaymentIntentID); err != nil {
					log.Printf("failed to release payment lock for %s: %v", input.PaymentIntentID, err)
				}
			}()
		}
	}

	existing, err := s.repo.GetByPaymentIntent(ctx, input.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if existing != nil {
		log.Printf("booking already exists for payment %s: %s", input.PaymentIntentID, existing.ID)
		breakdown, _ := s.calculator.Calculate(existing.Amount)
		return &CreateBookingResult{Booking: existing, Breakdown: breakdown, AlreadyExists: true}, nil
	}

	breakdown, err := s.calculator.Calculate(input.Amount)
	if err != nil {
		return nil, err
	}

	booking := newBooking(input)
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	log.Printf("booking %s created for payment %s", booking.ID, booking.PaymentIntentID)

	s.sendInvites(ctx, booking)
	s.publishLifecycleEvent(ctx, booking)
	s.dispatchCreated(ctx, booking, breakdown)

	return &CreateBookingResult{Booking: booking, Breakdown: breakdown}, nil
}

func validate(input CreateBookingInput) error {
	if input.PaymentIntentID == "" {
		return ErrMissingPaymentIntent
	}
	if input.HealerID == "" || input.SeekerID == "" {
		return ErrMissingParties
	}
	if input.Amount <= 0 {
		return commission.ErrInvalidAmount
	}
	return nil
}

func newBooking(input CreateBookingInput) *domain.Booking {
	return &domain.Booking{
		ID:              uuid.NewString(),
		ListingID:       input.ListingID,
		ListingTitle:    fallback(input.ListingTitle, "Untitled Service"),
		HealerID:        input.HealerID,
		HealerName:      fallback(input.HealerName, "Unknown Healer"),
		HealerEmail:     input.HealerEmail,
		SeekerID:        input.SeekerID,
		SeekerName:      fallback(input.SeekerName, "Unknown User"),
		SeekerEmail:     input.SeekerEmail,
		Amount:          input.Amount,
		Currency:        fallback(input.Currency, "USD"),
		SessionLength:   fallback(input.SessionLength, "60 min"),
		Format:          fallback(input.Format, "Remote"),
		Modality:        fallback(input.Modality, "Healing"),
		PaymentIntentID: input.PaymentIntentID,
		PaymentStatus:   "succeeded",
		SessionDate:     input.SessionDate,
		SessionTime:     input.SessionTime,
		Timezone:        input.Timezone,
		Reminders:       map[string]bool{},
		Status:          domain.NewStatusFlags(),
	}
}

// sendInvites emails both parties and flips the per-recipient status flag on
// each successful send.
func (s *BookingService) sendInvites(ctx context.Context, b *domain.Booking) {
	if s.sender == nil {
		return
	}
	if b.HealerEmail != "" {
		if err := s.sender.Send(ctx, b.HealerEmail, email.HealerInviteSubject, email.HealerInviteBody(b)); err != nil {
			log.Printf("healer invite email failed for booking %s: %v", b.ID, err)
		} else if err := s.repo.SetStatusFlag(ctx, b.ID, domain.StatusInviteEmailToHealer, true); err != nil {
			log.Printf("failed to flag healer invite for booking %s: %v", b.ID, err)
		}
	}
	if b.SeekerEmail != "" {
		if err := s.sender.Send(ctx, b.SeekerEmail, email.SeekerInviteSubject, email.SeekerInviteBody(b)); err != nil {
			log.Printf("seeker invite email failed for booking %s: %v", b.ID, err)
		} else if err := s.repo.SetStatusFlag(ctx, b.ID, domain.StatusInviteEmailToSeeker, true); err != nil {
			log.Printf("failed to flag seeker invite for booking %s: %v", b.ID, err)
		}
	}
}

func (s *BookingService) publishLifecycleEvent(ctx context.Context, b *domain.Booking) {
	if s.publisher == nil {
		return
	}
	event := kafka.BookingEvent{
		Type:            "booking_created",
		BookingID:       b.ID,
		PaymentIntentID: b.PaymentIntentID,
		HealerEmail:     b.HealerEmail,
		SeekerEmail:     b.SeekerEmail,
		Amount:          b.Amount,
		Currency:        b.Currency,
		SessionDate:     b.SessionDate,
	}
	if err := s.publisher.PublishWithRetry(ctx, s.cfg.Kafka.BookingEventsTopic, b.ID, event, 3); err != nil {
		log.Printf("failed to publish booking_created for %s: %v", b.ID, err)
	}
}

func (s *BookingService) dispatchCreated(ctx context.Context, b *domain.Booking, breakdown *commission.Breakdown) {
	if s.dispatcher == nil {
		return
	}
	payload := map[string]any{
		"bookingId":       b.ID,
		"paymentIntentId": b.PaymentIntentID,
		"listingTitle":    b.ListingTitle,
		"healer":          map[string]any{"id": b.HealerID, "name": b.HealerName, "email": b.HealerEmail},
		"seeker":          map[string]any{"id": b.SeekerID, "name": b.SeekerName, "email": b.SeekerEmail},
		"amount":          b.Amount,
		"currency":        b.Currency,
		"breakdown":       breakdown,
	}
	if !b.SessionDate.IsZero() {
		payload["sessionDate"] = b.SessionDate.UTC().Format(time.RFC3339)
	}
	opts := &dispatch.SendOptions{IdempotencyKey: b.PaymentIntentID}
	if _, err := s.dispatcher.Send(ctx, "booking.created", payload, opts); err != nil {
		log.Printf("failed to dispatch booking.created for %s: %v", b.ID, err)
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

var _ BookingUseCase = (*BookingService)(nil)
