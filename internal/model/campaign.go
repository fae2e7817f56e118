// internal/model/campaign.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type CampaignStatus string

const (
	CampaignNotStarted      CampaignStatus = "NOT_STARTED"
	CampaignDraftsStarted   CampaignStatus = "EMAIL_DRAFT_GENERATION_STARTED"
	CampaignDraftsCompleted CampaignStatus = "EMAIL_DRAFT_GENERATION_COMPLETED"
	CampaignSendStarted     CampaignStatus = "INITIAL_EMAILS_SEND_STARTED"
	CampaignSendCompleted   CampaignStatus = "INITIAL_EMAILS_SEND_COMPLETED"
	CampaignCompleted       CampaignStatus = "COMPLETED"
	CampaignStopped         CampaignStatus = "STOPPED"
)

type Tone string

const (
	ToneProfessional Tone = "PROFESSIONAL"
	ToneFriendly     Tone = "FRIENDLY"
	ToneCasual       Tone = "CASUAL"
	ToneFormal       Tone = "FORMAL"
)

type EmailLength string

const (
	EmailLengthShort  EmailLength = "SHORT"
	EmailLengthMedium EmailLength = "MEDIUM"
	EmailLengthLong   EmailLength = "LONG"
)

type FollowUpDelay string

const (
	DelayOneMinute    FollowUpDelay = "ONE_MINUTE"
	DelayThreeMinutes FollowUpDelay = "THREE_MINUTES"
	DelayFiveMinutes  FollowUpDelay = "FIVE_MINUTES"
	DelayTwoDays      FollowUpDelay = "TWO_DAYS"
	DelaySevenDays    FollowUpDelay = "SEVEN_DAYS"
	DelayFourteenDays FollowUpDelay = "FOURTEEN_DAYS"
	DelayOneMonth     FollowUpDelay = "ONE_MONTH"
)

// CampaignSettings is stored as JSONB on campaigns and snapshotted onto
// campaign_leads when draft generation starts.
type CampaignSettings struct {
	Tone              Tone          `json:"tone,omitempty"`
	EmailLength       EmailLength   `json:"email_length,omitempty"`
	Description       string        `json:"description,omitempty"`
	SenderName        string        `json:"sender_name,omitempty"`
	Signature         string        `json:"signature,omitempty"`
	Subject           string        `json:"subject,omitempty"`
	SubjectFromUser   bool          `json:"subject_from_user,omitempty"`
	IsFollowUpEnabled bool          `json:"is_follow_up_enabled"`
	FollowUpDelay     FollowUpDelay `json:"follow_up_delay,omitempty"`
}

func (s CampaignSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *CampaignSettings) Scan(src any) error {
	if src == nil {
		*s = CampaignSettings{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("cannot scan %T into CampaignSettings", src)
}

type Campaign struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	Name       string           `db:"name" json:"name"`
	LeadsCount int              `db:"leads_count" json:"leads_count"`
	Settings   CampaignSettings `db:"settings" json:"settings"`
	Status     CampaignStatus   `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time       `db:"updated_at" json:"updated_at,omitempty"`
}
