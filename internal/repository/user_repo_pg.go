package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository reads identities owned by the account service.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type PGUserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PGUserRepository{db: db}
}

func (r *PGUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `SELECT id, email, first_name, last_name, role FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, mapError(err))
	}
	return &u, nil
}

var _ UserRepository = (*PGUserRepository)(nil)
