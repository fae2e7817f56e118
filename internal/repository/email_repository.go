package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/followly/outreach-backend/internal/model"
)

type EmailRepositoryInterface interface {
	Create(e *model.Email) error
	ListByLead(leadID string) ([]model.Email, error)
}

// EmailRepository stores the audit trail of outbound and inbound messages.
type EmailRepository struct {
	DB *sql.DB
}

// Create inserts a new audit entry and fills in ID and CreatedAt
func (r *EmailRepository) Create(e *model.Email) error {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()

	query := `
        INSERT INTO emails (id, lead_id, campaign_id, direction, subject, body, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.Exec(query, e.ID, e.LeadID, e.CampaignID, e.Direction, e.Subject, e.Body, e.CreatedAt)
	return err
}

// ListByLead fetches all audit entries for a lead, newest first
func (r *EmailRepository) ListByLead(leadID string) ([]model.Email, error) {
	query := `
        SELECT id, lead_id, campaign_id, direction, subject, body, created_at
        FROM emails
        WHERE lead_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.DB.Query(query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(&e.ID, &e.LeadID, &e.CampaignID, &e.Direction, &e.Subject, &e.Body, &e.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

var _ EmailRepositoryInterface = (*EmailRepository)(nil)
