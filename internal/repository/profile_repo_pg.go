package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kitcasinillo/backend-server/internal/domain"
)

type ProfileRepository interface {
	List(ctx context.Context) ([]domain.Profile, error)
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

type PGProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) ProfileRepository {
	return &PGProfileRepository{db: db}
}

func (r *PGProfileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT id, role, email, first_name, last_name, display_name FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Role, &p.Email, &p.FirstName, &p.LastName, &p.DisplayName); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *PGProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT id, role, email, first_name, last_name, display_name FROM profiles WHERE id=$1`, id)
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Role, &p.Email, &p.FirstName, &p.LastName, &p.DisplayName); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ ProfileRepository = (*PGProfileRepository)(nil)
