// internal/service/campaign_service.go
package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/model"
	"github.com/followly/outreach-backend/internal/queue"
	"github.com/followly/outreach-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	UserRepo     repository.UserRepositoryInterface
	Queue        queue.Queue
}

// SettingsPatch is a partial settings update; nil fields keep their value.
type SettingsPatch struct {
	Tone              *model.Tone          `json:"tone"`
	EmailLength       *model.EmailLength   `json:"email_length"`
	Description       *string              `json:"description"`
	SenderName        *string              `json:"sender_name"`
	Signature         *string              `json:"signature"`
	Subject           *string              `json:"subject"`
	SubjectFromUser   *bool                `json:"subject_from_user"`
	IsFollowUpEnabled *bool                `json:"is_follow_up_enabled"`
	FollowUpDelay     *model.FollowUpDelay `json:"follow_up_delay"`
}

// EnqueueResult is the accepted acknowledgment for a fan-out phase.
type EnqueueResult struct {
	JobID       string `json:"job_id"`
	LeadsQueued int    `json:"leads_queued"`
}

// CreateCampaign validates and de-duplicates the lead ids, checks the whole
// set belongs to the user, and creates the campaign plus one campaign lead
// per id. The lead set is fixed at creation.
func (s *CampaignService) CreateCampaign(userID, name, description string, leadIDs []string) (*model.Campaign, error) {
	seen := map[string]bool{}
	uniqueIDs := []string{}
	for _, raw := range leadIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, appErrors.NewValidation("invalid lead id: %s", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		uniqueIDs = append(uniqueIDs, id)
	}

	if len(uniqueIDs) == 0 {
		return nil, appErrors.NewValidation("at least one valid lead id is required")
	}

	owned, err := s.LeadRepo.CountOwnedByUser(userID, uniqueIDs)
	if err != nil {
		return nil, err
	}
	if owned != len(uniqueIDs) {
		return nil, appErrors.NewValidation("all lead ids must exist and belong to the current user")
	}

	settings := model.CampaignSettings{
		Tone:              model.ToneProfessional,
		IsFollowUpEnabled: false,
		Description:       description,
	}
	user, err := s.UserRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user != nil && strings.TrimSpace(user.Name) != "" {
		settings.SenderName = user.Name
		settings.Signature = fmt.Sprintf("Best regards,\n%s", strings.TrimSpace(user.Name))
	}

	campaign := &model.Campaign{
		UserID:   userID,
		Name:     name,
		Settings: settings,
		Status:   model.CampaignNotStarted,
	}
	if err := s.CampaignRepo.Create(campaign, uniqueIDs); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *CampaignService) ListCampaigns(userID string) ([]*model.Campaign, error) {
	return s.CampaignRepo.ListByUser(userID)
}

func (s *CampaignService) FindOne(campaignID, userID string) (*model.Campaign, error) {
	if _, err := uuid.Parse(campaignID); err != nil {
		return nil, appErrors.NewValidation("invalid campaign id")
	}
	return s.CampaignRepo.GetByIDAndUser(campaignID, userID)
}

// GetCampaignByIDInternal is the worker-side lookup: no ownership check,
// and an unknown id resolves to nil rather than an error.
func (s *CampaignService) GetCampaignByIDInternal(campaignID string) (*model.Campaign, error) {
	if _, err := uuid.Parse(campaignID); err != nil {
		return nil, nil
	}
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		if appErrors.IsCampaignNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return campaign, nil
}

// PollLead is the per-lead slice of the poll snapshot.
type PollLead struct {
	LeadID               string                   `json:"lead_id"`
	Status               model.CampaignLeadStatus `json:"status"`
	SubjectDraft         string                   `json:"subject_draft,omitempty"`
	EmailDraft           string                   `json:"email_draft,omitempty"`
	FollowupSubjectDraft string                   `json:"followup_subject_draft,omitempty"`
	FollowupEmailDraft   string                   `json:"followup_email_draft,omitempty"`
}

type PollData struct {
	CampaignID string               `json:"campaign_id"`
	Status     model.CampaignStatus `json:"status"`
	Leads      []PollLead           `json:"leads"`
}

// FindPollData returns the cheap projection the UI polls while phases run.
func (s *CampaignService) FindPollData(campaignID, userID string) (*PollData, error) {
	campaign, err := s.FindOne(campaignID, userID)
	if err != nil {
		return nil, err
	}
	leads, err := s.CampaignRepo.ListLeads(campaignID)
	if err != nil {
		return nil, err
	}
	poll := &PollData{CampaignID: campaign.ID, Status: campaign.Status, Leads: []PollLead{}}
	for _, cl := range leads {
		poll.Leads = append(poll.Leads, PollLead{
			LeadID:               cl.LeadID,
			Status:               cl.Status,
			SubjectDraft:         cl.SubjectDraft,
			EmailDraft:           cl.EmailDraft,
			FollowupSubjectDraft: cl.FollowupSubjectDraft,
			FollowupEmailDraft:   cl.FollowupEmailDraft,
		})
	}
	return poll, nil
}

// CampaignLeadWithLead joins the per-recipient progress row with the lead.
type CampaignLeadWithLead struct {
	model.CampaignLead
	Lead *model.Lead `json:"lead,omitempty"`
}

func (s *CampaignService) FindCampaignLeads(campaignID, userID string) ([]CampaignLeadWithLead, error) {
	if _, err := s.FindOne(campaignID, userID); err != nil {
		return nil, err
	}
	rows, err := s.CampaignRepo.ListLeads(campaignID)
	if err != nil {
		return nil, err
	}
	result := []CampaignLeadWithLead{}
	for _, cl := range rows {
		lead, err := s.LeadRepo.GetByID(cl.LeadID)
		if err != nil {
			return nil, err
		}
		result = append(result, CampaignLeadWithLead{CampaignLead: *cl, Lead: lead})
	}
	return result, nil
}

// UpdateSettings merges the patch over the existing settings. Leads already
// snapshotted keep their frozen copy.
func (s *CampaignService) UpdateSettings(campaignID, userID string, patch SettingsPatch) (*model.Campaign, error) {
	existing, err := s.FindOne(campaignID, userID)
	if err != nil {
		return nil, err
	}

	settings := existing.Settings
	if patch.Tone != nil {
		settings.Tone = *patch.Tone
	}
	if patch.EmailLength != nil {
		settings.EmailLength = *patch.EmailLength
	}
	if patch.Description != nil {
		settings.Description = *patch.Description
	}
	if patch.SenderName != nil {
		settings.SenderName = *patch.SenderName
	}
	if patch.Signature != nil {
		settings.Signature = *patch.Signature
	}
	if patch.Subject != nil {
		settings.Subject = *patch.Subject
	}
	if patch.SubjectFromUser != nil {
		settings.SubjectFromUser = *patch.SubjectFromUser
	}
	if patch.IsFollowUpEnabled != nil {
		settings.IsFollowUpEnabled = *patch.IsFollowUpEnabled
	}
	if patch.FollowUpDelay != nil {
		settings.FollowUpDelay = *patch.FollowUpDelay
	}

	return s.CampaignRepo.UpdateSettings(campaignID, userID, settings)
}

// EnqueueGenerateDrafts starts the draft phase: campaign and every lead move
// to the started status (leads also get the settings snapshot), then one
// draft job per lead is published. Fan-out is not transactional with the
// status writes; the aggregator's re-check covers a crash in between.
func (s *CampaignService) EnqueueGenerateDrafts(campaignID, userID string) (*EnqueueResult, error) {
	campaign, err := s.FindOne(campaignID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignDraftsStarted); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.MarkLeadsPhaseStarted(campaignID, model.LeadDraftsStarted, &campaign.Settings); err != nil {
		return nil, err
	}

	leadIDs, err := s.CampaignRepo.ListLeadIDs(campaignID)
	if err != nil {
		return nil, err
	}
	for _, leadID := range leadIDs {
		msg := queue.Message{Job: queue.JobGenerateDrafts, CampaignID: campaignID, LeadID: leadID}
		if err := s.Queue.Publish(queue.EmailDraftsQueue, msg); err != nil {
			log.Println("⚠️ failed to enqueue draft job for lead", leadID, ":", err)
		}
	}
	return &EnqueueResult{JobID: uuid.NewString(), LeadsQueued: len(leadIDs)}, nil
}

// LaunchCampaign starts the send phase: one initial-send job per lead.
func (s *CampaignService) LaunchCampaign(campaignID, userID string) (*EnqueueResult, error) {
	if _, err := s.FindOne(campaignID, userID); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignSendStarted); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.MarkLeadsPhaseStarted(campaignID, model.LeadSendStarted, nil); err != nil {
		return nil, err
	}

	leadIDs, err := s.CampaignRepo.ListLeadIDs(campaignID)
	if err != nil {
		return nil, err
	}
	for _, leadID := range leadIDs {
		msg := queue.Message{Job: queue.JobSendCampaignEmails, CampaignID: campaignID, LeadID: leadID}
		if err := s.Queue.Publish(queue.SendEmailQueue, msg); err != nil {
			log.Println("⚠️ failed to enqueue send job for lead", leadID, ":", err)
		}
	}
	return &EnqueueResult{JobID: uuid.NewString(), LeadsQueued: len(leadIDs)}, nil
}

// ScheduleFollowUpEmail emits one delayed follow-up job for the lead. No-ops
// when the lead's settings snapshot has follow-up disabled. The delayed job
// cannot be cancelled; the send handler re-checks the reply flag at run time.
func (s *CampaignService) ScheduleFollowUpEmail(campaignID, leadID string) error {
	campaignLead, err := s.CampaignRepo.GetLead(campaignID, leadID)
	if err != nil {
		return err
	}
	if campaignLead == nil || !campaignLead.FollowUpEnabled() {
		return nil
	}

	delay := model.DelayTwoDays
	if campaignLead.Settings.FollowUpDelay != "" {
		delay = campaignLead.Settings.FollowUpDelay
	}

	msg := queue.Message{Job: queue.JobSendFollowUpEmail, CampaignID: campaignID, LeadID: leadID}
	return s.Queue.PublishDelayed(queue.SendEmailQueue, msg, FollowUpDelayDuration(delay))
}

// MarkReplyReceived records an inbound reply: flags set, lead completed,
// campaign advanced if it was the last one.
func (s *CampaignService) MarkReplyReceived(campaignID, leadID string) error {
	if err := s.CampaignRepo.MarkReplyReceived(campaignID, leadID); err != nil {
		return err
	}
	_, err := s.TryMarkCampaignCompleted(campaignID)
	return err
}

// ====================== Completion aggregation ======================
//
// Each TryMark* runs the same idempotent pattern: an existence check for any
// lead outside the phase's accepted terminal set, then a conditional status
// write. Re-setting an already-set status is a no-op, so the check/write
// race between concurrent workers is benign and no lock is needed.

func (s *CampaignService) tryAdvance(campaignID string, accepted []model.CampaignLeadStatus, target model.CampaignStatus) (bool, error) {
	pending, err := s.CampaignRepo.HasLeadOutsideStatuses(campaignID, accepted)
	if err != nil {
		return false, err
	}
	if pending {
		return false, nil
	}
	log.Printf("✅ All leads done for campaign=%s, marking %s", campaignID, target)
	if err := s.CampaignRepo.UpdateStatus(campaignID, target); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CampaignService) TryMarkCampaignDraftsCompleted(campaignID string) (bool, error) {
	return s.tryAdvance(campaignID,
		[]model.CampaignLeadStatus{model.LeadDraftsCompleted},
		model.CampaignDraftsCompleted)
}

// TryMarkCampaignSendCompleted accepts both send-completed and completed
// because leads without follow-up jump straight to COMPLETED.
func (s *CampaignService) TryMarkCampaignSendCompleted(campaignID string) (bool, error) {
	return s.tryAdvance(campaignID,
		[]model.CampaignLeadStatus{model.LeadSendCompleted, model.LeadCompleted},
		model.CampaignSendCompleted)
}

func (s *CampaignService) TryMarkCampaignCompleted(campaignID string) (bool, error) {
	return s.tryAdvance(campaignID,
		[]model.CampaignLeadStatus{model.LeadCompleted},
		model.CampaignCompleted)
}
