// internal/model/email.go
package model

import "time"

type EmailDirection string

const (
	EmailOutbound EmailDirection = "OUTBOUND"
	EmailInbound  EmailDirection = "INBOUND"
)

// Email is the audit record written for every outbound attempt and every
// resolved inbound reply.
type Email struct {
	ID         string         `db:"id" json:"id"`
	LeadID     string         `db:"lead_id" json:"lead_id"`
	CampaignID string         `db:"campaign_id" json:"campaign_id"`
	Direction  EmailDirection `db:"direction" json:"direction"`
	Subject    string         `db:"subject" json:"subject"`
	Body       string         `db:"body" json:"body"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
