// internal/model/campaign_lead.go
package model

import "time"

type CampaignLeadStatus string

const (
	LeadNotStarted      CampaignLeadStatus = "NOT_STARTED"
	LeadDraftsStarted   CampaignLeadStatus = "EMAIL_DRAFT_GENERATION_STARTED"
	LeadDraftsCompleted CampaignLeadStatus = "EMAIL_DRAFT_GENERATION_COMPLETED"
	LeadSendStarted     CampaignLeadStatus = "INITIAL_EMAILS_SEND_STARTED"
	LeadSendCompleted   CampaignLeadStatus = "INITIAL_EMAILS_SEND_COMPLETED"
	LeadCompleted       CampaignLeadStatus = "COMPLETED"
	LeadStopped         CampaignLeadStatus = "STOPPED"
)

// CampaignLead tracks one recipient's progress through a campaign.
// Settings is the snapshot copied from the campaign when draft generation
// starts, so later settings edits do not change in-flight drafts.
type CampaignLead struct {
	ID                   string             `db:"id" json:"id"`
	CampaignID           string             `db:"campaign_id" json:"campaign_id"`
	LeadID               string             `db:"lead_id" json:"lead_id"`
	Status               CampaignLeadStatus `db:"status" json:"status"`
	Settings             *CampaignSettings  `db:"settings" json:"settings,omitempty"`
	SubjectDraft         string             `db:"subject_draft" json:"subject_draft,omitempty"`
	EmailDraft           string             `db:"email_draft" json:"email_draft,omitempty"`
	FollowupSubjectDraft string             `db:"followup_subject_draft" json:"followup_subject_draft,omitempty"`
	FollowupEmailDraft   string             `db:"followup_email_draft" json:"followup_email_draft,omitempty"`
	IsFollowUpEmailSent  bool               `db:"is_follow_up_email_sent" json:"is_follow_up_email_sent"`
	FollowUpEmailSentAt  *time.Time         `db:"follow_up_email_sent_at" json:"follow_up_email_sent_at,omitempty"`
	IsReplyReceived      bool               `db:"is_reply_received" json:"is_reply_received"`
	ReplyReceivedAt      *time.Time         `db:"reply_received_at" json:"reply_received_at,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            *time.Time         `db:"updated_at" json:"updated_at,omitempty"`
}

// FollowUpEnabled reads the snapshot; leads without a snapshot never follow up.
func (cl *CampaignLead) FollowUpEnabled() bool {
	return cl.Settings != nil && cl.Settings.IsFollowUpEnabled
}
