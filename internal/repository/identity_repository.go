package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Create(ctx context.Context, cred *domain.Credential) error {
	const query = `
        INSERT INTO identities (email, password_hash)
        VALUES ($1, $2)
        RETURNING id`

	err := r.pool.QueryRow(ctx, query, cred.Email, cred.PasswordHash).Scan(&cred.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	const query = `SELECT id, email, password_hash FROM identities WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	const query = `SELECT id, email, password_hash FROM identities WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *identityRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Credential, error) {
	var cred domain.Credential
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&cred.ID, &cred.Email, &cred.PasswordHash); err != nil {
		return nil, mapNoRows(err)
	}
	return &cred, nil
}
