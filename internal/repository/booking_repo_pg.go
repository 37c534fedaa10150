package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kitcasinillo/backend-server/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Booking, error)
	ListByParty(ctx context.Context, role domain.Role, userID string) ([]domain.Booking, error)
	ListSessionsBetween(ctx context.Context, start, end time.Time) ([]domain.Booking, error)
	SetReminderMarker(ctx context.Context, bookingID, label string) error
	SetStatusFlag(ctx context.Context, bookingID, flag string, value bool) error
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, listing_id, listing_title, healer_id, healer_name, healer_email,
	seeker_id, seeker_name, seeker_email, amount, currency, session_length, format, modality,
	payment_intent_id, payment_status, session_date, session_time, timezone, reminders, status,
	created_at, updated_at`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	row := r.db.QueryRow(ctx, `INSERT INTO bookings (id, listing_id, listing_title, healer_id, healer_name, healer_email,
		seeker_id, seeker_name, seeker_email, amount, currency, session_length, format, modality,
		payment_intent_id, payment_status, session_date, session_time, timezone, reminders, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at`,
		booking.ID, booking.ListingID, booking.ListingTitle, booking.HealerID, booking.HealerName, booking.HealerEmail,
		booking.SeekerID, booking.SeekerName, booking.SeekerEmail, booking.Amount, booking.Currency,
		booking.SessionLength, booking.Format, booking.Modality, booking.PaymentIntentID, booking.PaymentStatus,
		booking.SessionDate, booking.SessionTime, booking.Timezone, booking.Reminders, booking.Status)
	return row.Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

// GetByPaymentIntent returns (nil, nil) when no booking exists for the
// payment reference; that is the expected outcome on the creation path.
func (r *PGBookingRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id=$1`, paymentIntentID)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *PGBookingRepository) ListByParty(ctx context.Context, role domain.Role, userID string) ([]domain.Booking, error) {
	column := "seeker_id"
	if role == domain.RoleHealer {
		column = "healer_id"
	}
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+column+`=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *PGBookingRepository) ListSessionsBetween(ctx context.Context, start, end time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE session_date >= $1 AND session_date < $2 ORDER BY session_date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *PGBookingRepository) SetReminderMarker(ctx context.Context, bookingID, label string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings
		SET reminders = jsonb_set(coalesce(reminders, '{}'::jsonb), $2, 'true'::jsonb, true), updated_at = now()
		WHERE id = $1`, bookingID, []string{label})
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("booking not found")
	}
	return nil
}

func (r *PGBookingRepository) SetStatusFlag(ctx context.Context, bookingID, flag string, value bool) error {
	jsonValue := "false"
	if value {
		jsonValue = "true"
	}
	cmd, err := r.db.Exec(ctx, `UPDATE bookings
		SET status = jsonb_set(coalesce(status, '{}'::jsonb), $2, $3::jsonb, true), updated_at = now()
		WHERE id = $1`, bookingID, []string{flag}, jsonValue)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("booking not found")
	}
	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.ListingID, &b.ListingTitle, &b.HealerID, &b.HealerName, &b.HealerEmail,
		&b.SeekerID, &b.SeekerName, &b.SeekerEmail, &b.Amount, &b.Currency, &b.SessionLength, &b.Format,
		&b.Modality, &b.PaymentIntentID, &b.PaymentStatus, &b.SessionDate, &b.SessionTime, &b.Timezone,
		&b.Reminders, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookings(rows pgx.Rows) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
