package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign, leadIDs []string) error
	GetByID(id string) (*model.Campaign, error)
	GetByIDAndUser(id, userID string) (*model.Campaign, error)
	ListByUser(userID string) ([]*model.Campaign, error)
	UpdateStatus(campaignID string, status model.CampaignStatus) error
	UpdateSettings(campaignID, userID string, settings model.CampaignSettings) (*model.Campaign, error)

	// Campaign leads
	MarkLeadsPhaseStarted(campaignID string, status model.CampaignLeadStatus, snapshot *model.CampaignSettings) error
	ListLeadIDs(campaignID string) ([]string, error)
	GetLead(campaignID, leadID string) (*model.CampaignLead, error)
	GetLeadByID(id string) (*model.CampaignLead, error)
	UpdateLeadDrafts(id string, status model.CampaignLeadStatus, subject, body, followupSubject, followupBody string) error
	UpdateLeadStatus(id string, status model.CampaignLeadStatus) error
	MarkFollowUpSent(id string) error
	MarkReplyReceived(campaignID, leadID string) error
	ListLeads(campaignID string) ([]*model.CampaignLead, error)

	// Completion aggregation
	HasLeadOutsideStatuses(campaignID string, accepted []model.CampaignLeadStatus) (bool, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignLeadColumns = `id, campaign_id, lead_id, status, settings,
	subject_draft, email_draft, followup_subject_draft, followup_email_draft,
	is_follow_up_email_sent, follow_up_email_sent_at,
	is_reply_received, reply_received_at, created_at, updated_at`

// ====================== Campaign CRUD ======================

// Create inserts the campaign and one campaign_leads row per lead id in a
// single transaction, so a half-created campaign never becomes visible.
func (r *CampaignRepository) Create(c *model.Campaign, leadIDs []string) error {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignNotStarted
	}
	c.LeadsCount = len(leadIDs)

	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO campaigns (id, user_id, name, leads_count, settings, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	if _, err := tx.Exec(query, c.ID, c.UserID, c.Name, c.LeadsCount, c.Settings, c.Status, c.CreatedAt); err != nil {
		return err
	}

	leadQuery := `
        INSERT INTO campaign_leads (id, campaign_id, lead_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	for _, leadID := range leadIDs {
		if _, err := tx.Exec(leadQuery, uuid.NewString(), c.ID, leadID, model.LeadNotStarted, c.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *CampaignRepository) GetByID(id string) (*model.Campaign, error) {
	query := `
        SELECT id, user_id, name, leads_count, settings, status, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.UserID, &c.Name, &c.LeadsCount, &c.Settings, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) GetByIDAndUser(id, userID string) (*model.Campaign, error) {
	query := `
        SELECT id, user_id, name, leads_count, settings, status, created_at, updated_at
        FROM campaigns WHERE id=$1 AND user_id=$2
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.LeadsCount, &c.Settings, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListByUser(userID string) ([]*model.Campaign, error) {
	query := `
        SELECT id, user_id, name, leads_count, settings, status, created_at, updated_at
        FROM campaigns WHERE user_id=$1 ORDER BY created_at DESC
    `
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.LeadsCount, &c.Settings, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(campaignID string, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, campaignID)
	return err
}

func (r *CampaignRepository) UpdateSettings(campaignID, userID string, settings model.CampaignSettings) (*model.Campaign, error) {
	query := `
        UPDATE campaigns SET settings=$1, updated_at=NOW()
        WHERE id=$2 AND user_id=$3
    `
	res, err := r.DB.Exec(query, settings, campaignID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	return r.GetByIDAndUser(campaignID, userID)
}

// ====================== Campaign leads ======================

// MarkLeadsPhaseStarted bulk-moves every lead of the campaign into the
// phase's started status. A non-nil snapshot freezes the campaign settings
// onto each lead (draft phase only); later settings edits do not touch it.
func (r *CampaignRepository) MarkLeadsPhaseStarted(campaignID string, status model.CampaignLeadStatus, snapshot *model.CampaignSettings) error {
	if snapshot != nil {
		query := `UPDATE campaign_leads SET status=$1, settings=$2, updated_at=NOW() WHERE campaign_id=$3`
		_, err := r.DB.Exec(query, status, *snapshot, campaignID)
		return err
	}
	query := `UPDATE campaign_leads SET status=$1, updated_at=NOW() WHERE campaign_id=$2`
	_, err := r.DB.Exec(query, status, campaignID)
	return err
}

func (r *CampaignRepository) ListLeadIDs(campaignID string) ([]string, error) {
	rows, err := r.DB.Query(`SELECT lead_id FROM campaign_leads WHERE campaign_id=$1`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CampaignRepository) scanLead(row *sql.Row) (*model.CampaignLead, error) {
	var cl model.CampaignLead
	var settings model.CampaignSettings
	var hasSettings bool
	err := row.Scan(
		&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.Status, &nullableSettings{&settings, &hasSettings},
		&cl.SubjectDraft, &cl.EmailDraft, &cl.FollowupSubjectDraft, &cl.FollowupEmailDraft,
		&cl.IsFollowUpEmailSent, &cl.FollowUpEmailSentAt,
		&cl.IsReplyReceived, &cl.ReplyReceivedAt, &cl.CreatedAt, &cl.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	if hasSettings {
		cl.Settings = &settings
	}
	return &cl, nil
}

func (r *CampaignRepository) GetLead(campaignID, leadID string) (*model.CampaignLead, error) {
	query := `SELECT ` + campaignLeadColumns + ` FROM campaign_leads WHERE campaign_id=$1 AND lead_id=$2`
	return r.scanLead(r.DB.QueryRow(query, campaignID, leadID))
}

func (r *CampaignRepository) GetLeadByID(id string) (*model.CampaignLead, error) {
	query := `SELECT ` + campaignLeadColumns + ` FROM campaign_leads WHERE id=$1`
	return r.scanLead(r.DB.QueryRow(query, id))
}

func (r *CampaignRepository) UpdateLeadDrafts(id string, status model.CampaignLeadStatus, subject, body, followupSubject, followupBody string) error {
	query := `
        UPDATE campaign_leads
        SET status=$1, subject_draft=$2, email_draft=$3,
            followup_subject_draft=$4, followup_email_draft=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, status, subject, body, followupSubject, followupBody, id)
	return err
}

func (r *CampaignRepository) UpdateLeadStatus(id string, status model.CampaignLeadStatus) error {
	query := `UPDATE campaign_leads SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

func (r *CampaignRepository) MarkFollowUpSent(id string) error {
	query := `
        UPDATE campaign_leads
        SET is_follow_up_email_sent=TRUE, follow_up_email_sent_at=NOW(),
            status=$1, updated_at=NOW()
        WHERE id=$2
    `
	_, err := r.DB.Exec(query, model.LeadCompleted, id)
	return err
}

func (r *CampaignRepository) MarkReplyReceived(campaignID, leadID string) error {
	query := `
        UPDATE campaign_leads
        SET is_reply_received=TRUE, reply_received_at=NOW(),
            status=$1, updated_at=NOW()
        WHERE campaign_id=$2 AND lead_id=$3
    `
	_, err := r.DB.Exec(query, model.LeadCompleted, campaignID, leadID)
	return err
}

func (r *CampaignRepository) ListLeads(campaignID string) ([]*model.CampaignLead, error) {
	query := `SELECT ` + campaignLeadColumns + ` FROM campaign_leads WHERE campaign_id=$1 ORDER BY created_at`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*model.CampaignLead{}
	for rows.Next() {
		var cl model.CampaignLead
		var settings model.CampaignSettings
		var hasSettings bool
		if err := rows.Scan(
			&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.Status, &nullableSettings{&settings, &hasSettings},
			&cl.SubjectDraft, &cl.EmailDraft, &cl.FollowupSubjectDraft, &cl.FollowupEmailDraft,
			&cl.IsFollowUpEmailSent, &cl.FollowUpEmailSentAt,
			&cl.IsReplyReceived, &cl.ReplyReceivedAt, &cl.CreatedAt, &cl.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if hasSettings {
			s := settings
			cl.Settings = &s
		}
		leads = append(leads, &cl)
	}
	return leads, rows.Err()
}

// ====================== Completion aggregation ======================

// HasLeadOutsideStatuses is the aggregator's pending check: does any lead of
// the campaign sit outside the accepted terminal set for the phase? Safe to
// call redundantly from concurrent workers.
func (r *CampaignRepository) HasLeadOutsideStatuses(campaignID string, accepted []model.CampaignLeadStatus) (bool, error) {
	statuses := make([]string, len(accepted))
	for i, s := range accepted {
		statuses[i] = string(s)
	}
	var exists bool
	err := r.DB.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM campaign_leads
            WHERE campaign_id = $1 AND status <> ALL($2)
        )`, campaignID, pq.Array(statuses)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// nullableSettings scans a possibly-NULL JSONB settings column.
type nullableSettings struct {
	settings *model.CampaignSettings
	valid    *bool
}

func (n *nullableSettings) Scan(src any) error {
	if src == nil {
		*n.valid = false
		return nil
	}
	*n.valid = true
	return n.settings.Scan(src)
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
