package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/followly/outreach-backend/internal/model"
)

// LeadRepositoryInterface defines methods used by services and workers
type LeadRepositoryInterface interface {
	GetByID(id string) (*model.Lead, error)
	CountOwnedByUser(userID string, ids []string) (int, error)
	ListByUser(userID string) ([]model.Lead, error)
}

// LeadRepository is the concrete implementation
type LeadRepository struct {
	DB *sql.DB
}

// GetByID fetches a lead by ID
func (r *LeadRepository) GetByID(id string) (*model.Lead, error) {
	query := `
        SELECT id, user_id, name, email, additional_info, created_at
        FROM leads
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var l model.Lead
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Email, &l.AdditionalInfo, &l.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &l, nil
}

// CountOwnedByUser counts how many of the given lead ids exist and belong to
// the user. Campaign creation compares this against the de-duplicated input
// size; a mismatch means a foreign or missing id.
func (r *LeadRepository) CountOwnedByUser(userID string, ids []string) (int, error) {
	query := `
        SELECT COUNT(*) FROM leads
        WHERE user_id = $1 AND id = ANY($2)
    `
	var count int
	if err := r.DB.QueryRow(query, userID, pq.Array(ids)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListByUser fetches all leads of a user, newest first
func (r *LeadRepository) ListByUser(userID string) ([]model.Lead, error) {
	query := `
        SELECT id, user_id, name, email, additional_info, created_at
        FROM leads
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.Email, &l.AdditionalInfo, &l.CreatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
