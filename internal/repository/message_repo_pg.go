package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kitcasinillo/backend-server/internal/domain"
)

type MessageRepository interface {
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Message, error)
}

type PGMessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &PGMessageRepository{db: db}
}

func (r *PGMessageRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `SELECT id, booking_id, sender_id, body, timestamp, read_by
		FROM messages WHERE booking_id=$1 ORDER BY timestamp`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.BookingID, &m.SenderID, &m.Body, &m.Timestamp, &m.ReadBy); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

var _ MessageRepository = (*PGMessageRepository)(nil)
