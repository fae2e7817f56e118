// internal/service/email_service.go
package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/mailer"
	"github.com/followly/outreach-backend/internal/model"
	"github.com/followly/outreach-backend/internal/queue"
	"github.com/followly/outreach-backend/internal/repository"
)

const DefaultFromEmail = "outreach@mail.followly.pro"

// EmailService consumes send jobs (initial and follow-up) and owns the
// allowlist-gated dispatch plus the audit trail.
type EmailService struct {
	CampaignRepo    repository.CampaignRepositoryInterface
	LeadRepo        repository.LeadRepositoryInterface
	UserRepo        repository.UserRepositoryInterface
	EmailRepo       repository.EmailRepositoryInterface
	Transport       mailer.Transport
	CampaignService *CampaignService

	// FromEmail is the fixed sending address; ReplyDomain, when set, builds
	// per-lead Reply-To addresses (cl-<campaignLeadId>@domain) so inbound
	// replies resolve back to the campaign lead.
	FromEmail   string
	ReplyDomain string

	// Throttle spaces out real dispatches. Zero in tests.
	Throttle time.Duration
}

// HandleSendEmail dispatches one send-queue message by job kind.
func (s *EmailService) HandleSendEmail(msg queue.Message) error {
	switch msg.Job {
	case queue.JobSendCampaignEmails:
		return s.handleInitialSend(msg)
	case queue.JobSendFollowUpEmail:
		return s.handleFollowUpSend(msg)
	default:
		log.Println("⚠️ Unknown job name:", msg.Job)
		return fmt.Errorf("unknown job name: %s", msg.Job)
	}
}

func (s *EmailService) handleInitialSend(msg queue.Message) error {
	log.Printf("📩 Sending initial email campaign=%s lead=%s", msg.CampaignID, msg.LeadID)

	campaign, err := s.CampaignService.GetCampaignByIDInternal(msg.CampaignID)
	if err != nil {
		return err
	}
	campaignLead, err := s.CampaignRepo.GetLead(msg.CampaignID, msg.LeadID)
	if err != nil {
		return err
	}
	if campaign == nil || campaignLead == nil {
		log.Printf("⚠️ Campaign lead not found campaign=%s lead=%s, skipping", msg.CampaignID, msg.LeadID)
		return nil
	}
	lead, err := s.LeadRepo.GetByID(msg.LeadID)
	if err != nil {
		return err
	}

	subject := strings.TrimSpace(campaignLead.SubjectDraft)
	if subject == "" {
		subject = fmt.Sprintf("Re: %s", campaign.Name)
	}

	sent := false
	if lead != nil && lead.Email != "" {
		if err := s.sendAndAudit(campaign, campaignLead, lead, subject, PlainTextToHTML(campaignLead.EmailDraft)); err != nil {
			return err
		}
		sent = true
		if s.Throttle > 0 {
			time.Sleep(s.Throttle)
		}
	} else {
		log.Printf("⚠️ Lead has no email campaign=%s lead=%s, marking sent without sending", msg.CampaignID, msg.LeadID)
	}

	followUpEnabled := campaignLead.FollowUpEnabled()
	nextStatus := model.LeadCompleted
	if followUpEnabled {
		nextStatus = model.LeadSendCompleted
	}
	if err := s.CampaignRepo.UpdateLeadStatus(campaignLead.ID, nextStatus); err != nil {
		return err
	}

	if sent && followUpEnabled && !campaignLead.IsFollowUpEmailSent {
		if err := s.CampaignService.ScheduleFollowUpEmail(msg.CampaignID, msg.LeadID); err != nil {
			return err
		}
	}

	log.Printf("✅ Initial email completed campaign=%s lead=%s", msg.CampaignID, msg.LeadID)
	if followUpEnabled {
		_, err = s.CampaignService.TryMarkCampaignSendCompleted(msg.CampaignID)
	} else {
		_, err = s.CampaignService.TryMarkCampaignCompleted(msg.CampaignID)
	}
	return err
}

// handleFollowUpSend runs when the delayed job fires. Delayed jobs cannot be
// cancelled, so the reply and already-sent flags are checked here instead.
func (s *EmailService) handleFollowUpSend(msg queue.Message) error {
	log.Printf("📩 Processing follow-up email campaign=%s lead=%s", msg.CampaignID, msg.LeadID)

	campaignLead, err := s.CampaignRepo.GetLead(msg.CampaignID, msg.LeadID)
	if err != nil {
		return err
	}
	if campaignLead == nil {
		log.Printf("⚠️ Campaign lead not found campaign=%s lead=%s, skipping follow-up", msg.CampaignID, msg.LeadID)
		return nil
	}
	if campaignLead.IsReplyReceived || campaignLead.IsFollowUpEmailSent {
		log.Printf("Skipping follow-up: reply received or already sent campaign=%s lead=%s", msg.CampaignID, msg.LeadID)
		return nil
	}

	lead, err := s.LeadRepo.GetByID(msg.LeadID)
	if err != nil {
		return err
	}
	if lead == nil || lead.Email == "" {
		log.Printf("⚠️ Lead has no email, skipping follow-up campaign=%s lead=%s", msg.CampaignID, msg.LeadID)
		return nil
	}

	campaign, err := s.CampaignService.GetCampaignByIDInternal(msg.CampaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		log.Printf("⚠️ Campaign not found campaign=%s, skipping follow-up", msg.CampaignID)
		return nil
	}

	subject := followUpSubject(campaign, campaignLead)
	html := followUpBody(campaignLead)

	if err := s.sendAndAudit(campaign, campaignLead, lead, subject, html); err != nil {
		return err
	}

	if err := s.CampaignRepo.MarkFollowUpSent(campaignLead.ID); err != nil {
		return err
	}

	log.Printf("✅ Follow-up email sent campaign=%s lead=%s", msg.CampaignID, msg.LeadID)
	_, err = s.CampaignService.TryMarkCampaignCompleted(msg.CampaignID)
	return err
}

func followUpSubject(campaign *model.Campaign, cl *model.CampaignLead) string {
	if s := strings.TrimSpace(cl.FollowupSubjectDraft); s != "" {
		return s
	}
	if s := strings.TrimSpace(cl.SubjectDraft); s != "" {
		return fmt.Sprintf("Re: %s (follow-up)", s)
	}
	if campaign.Name != "" {
		return fmt.Sprintf("Re: %s (follow-up)", campaign.Name)
	}
	return "Re: Follow-up"
}

// followUpBody prefers the generated follow-up draft; without one it builds
// a one-paragraph reminder from the first line of the initial draft.
func followUpBody(cl *model.CampaignLead) string {
	if draft := strings.TrimSpace(cl.FollowupEmailDraft); draft != "" {
		return PlainTextToHTML(draft)
	}

	firstLine := "my previous message"
	if lines := strings.SplitN(cl.EmailDraft, "\n", 2); strings.TrimSpace(lines[0]) != "" {
		firstLine = strings.TrimSpace(lines[0])
	}
	ellipsis := ""
	if len(firstLine) > 120 {
		firstLine = firstLine[:120]
		ellipsis = "…"
	}
	return fmt.Sprintf("<p>Following up on my previous message – %s%s</p><p>Would you have a few minutes to connect?</p>", firstLine, ellipsis)
}

// sendAndAudit writes the audit entry for every attempt and dispatches only
// when the recipient is on the owner's allowlist. An empty allowlist means
// no real sends, which keeps test campaigns from mailing strangers.
func (s *EmailService) sendAndAudit(campaign *model.Campaign, cl *model.CampaignLead, lead *model.Lead, subject, html string) error {
	senderName := campaign.Settings.SenderName
	if cl.Settings != nil && cl.Settings.SenderName != "" {
		senderName = cl.Settings.SenderName
	}

	if s.allowed(campaign.UserID, lead.Email) {
		opts := mailer.SendOptions{
			From:    s.buildFrom(senderName),
			To:      lead.Email,
			Subject: subject,
			HTML:    html,
			ReplyTo: s.replyTo(cl.ID),
		}
		if err := s.Transport.Send(opts); err != nil {
			return err
		}
	} else {
		log.Printf("🚫 Recipient %s not in allowlist, recording without dispatch", lead.Email)
	}

	return s.EmailRepo.Create(&model.Email{
		LeadID:     lead.ID,
		CampaignID: campaign.ID,
		Direction:  model.EmailOutbound,
		Subject:    subject,
		Body:       html,
	})
}

func (s *EmailService) allowed(userID, recipient string) bool {
	user, err := s.UserRepo.GetByID(userID)
	if err != nil {
		log.Println("⚠️ Allowlist lookup failed:", err)
		return false
	}
	if user == nil || strings.TrimSpace(user.EmailAllowlist) == "" {
		return false
	}
	for _, entry := range strings.Split(user.EmailAllowlist, ",") {
		if strings.EqualFold(strings.TrimSpace(entry), strings.TrimSpace(recipient)) {
			return true
		}
	}
	return false
}

func (s *EmailService) buildFrom(senderName string) string {
	from := s.FromEmail
	if from == "" {
		from = DefaultFromEmail
	}
	if strings.TrimSpace(senderName) != "" {
		return fmt.Sprintf("%s <%s>", strings.TrimSpace(senderName), from)
	}
	return fmt.Sprintf("Followly <%s>", from)
}

func (s *EmailService) replyTo(campaignLeadID string) string {
	if s.ReplyDomain == "" {
		return ""
	}
	return fmt.Sprintf("cl-%s@%s", campaignLeadID, s.ReplyDomain)
}

// ListLeadEmails returns the audit trail for a lead owned by the user.
func (s *EmailService) ListLeadEmails(leadID, userID string) ([]model.Email, error) {
	lead, err := s.LeadRepo.GetByID(leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil || lead.UserID != userID {
		return nil, fmt.Errorf("lead %s: %w", leadID, appErrors.ErrNotFound)
	}
	return s.EmailRepo.ListByLead(leadID)
}

// PlainTextToHTML converts a plain-text draft to HTML so line breaks survive
// email clients. Escapes entities to keep the message intact.
func PlainTextToHTML(text string) string {
	if text == "" {
		return ""
	}
	escaped := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	).Replace(text)
	return strings.ReplaceAll(escaped, "\n", "<br>\n")
}
