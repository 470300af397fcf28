package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

// Put writes the whole profile. created_at is assigned by the database.
func (r *profileRepository) Put(ctx context.Context, profile *domain.UserProfile) error {
	const query = `
        INSERT INTO profiles (id, email, name, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET email=EXCLUDED.email, name=EXCLUDED.name, role=EXCLUDED.role
        RETURNING created_at`

	var role *string
	if profile.Role != "" {
		value := string(profile.Role)
		role = &value
	}
	return r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.Name,
		role,
	).Scan(&profile.CreatedAt)
}

func (r *profileRepository) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	const query = `
        SELECT id, email, name, role, created_at
        FROM profiles WHERE id=$1`

	var (
		profile domain.UserProfile
		role    *string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.Name,
		&role,
		&profile.CreatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	if role != nil {
		profile.Role = domain.Role(*role)
	}
	return &profile, nil
}
