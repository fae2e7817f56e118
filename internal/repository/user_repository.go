package repository

import (
	"database/sql"

	"github.com/followly/outreach-backend/internal/model"
)

type UserRepositoryInterface interface {
	GetByID(id string) (*model.User, error)
}

type UserRepository struct {
	DB *sql.DB
}

func (r *UserRepository) GetByID(id string) (*model.User, error) {
	query := `
        SELECT id, name, email, email_allowlist, created_at
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.DB.QueryRow(query, id).Scan(&u.ID, &u.Name, &u.Email, &u.EmailAllowlist, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &u, nil
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
