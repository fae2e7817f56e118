// internal/service/draft_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/llm"
	"github.com/followly/outreach-backend/internal/model"
	"github.com/followly/outreach-backend/internal/queue"
	"github.com/followly/outreach-backend/internal/repository"
)

// DraftService consumes draft-generation jobs: build prompt, call the
// generator, parse its JSON output, persist drafts, run the aggregator.
type DraftService struct {
	CampaignRepo    repository.CampaignRepositoryInterface
	LeadRepo        repository.LeadRepositoryInterface
	Generator       llm.Generator
	CampaignService *CampaignService
}

// Draft is the parsed generator output.
type Draft struct {
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	FollowupSubject string `json:"followupSubject"`
	FollowupBody    string `json:"followupBody"`
}

// HandleGenerateDrafts processes one {campaign, lead} job. Entities that no
// longer resolve are a skip, not a failure: they may have been legitimately
// removed, and retrying would never succeed.
func (s *DraftService) HandleGenerateDrafts(msg queue.Message) error {
	log.Printf("📝 Generating draft for campaign=%s lead=%s", msg.CampaignID, msg.LeadID)

	campaignLead, err := s.CampaignRepo.GetLead(msg.CampaignID, msg.LeadID)
	if err != nil {
		return err
	}
	if campaignLead == nil {
		log.Printf("⚠️ Campaign lead not found campaign=%s lead=%s, skipping", msg.CampaignID, msg.LeadID)
		return nil
	}

	campaign, err := s.CampaignService.GetCampaignByIDInternal(msg.CampaignID)
	if err != nil {
		return err
	}
	lead, err := s.LeadRepo.GetByID(msg.LeadID)
	if err != nil {
		return err
	}
	if campaign == nil || lead == nil {
		log.Printf("⚠️ Campaign or lead not found campaign=%s lead=%s, skipping", msg.CampaignID, msg.LeadID)
		return nil
	}

	followUpEnabled := campaign.Settings.IsFollowUpEnabled
	prompt := BuildDraftPrompt(campaign, lead, followUpEnabled)

	raw, err := s.Generator.Generate(context.Background(), prompt)
	if err != nil {
		log.Printf("⚠️ Draft generation failed for campaign=%s lead=%s: %v", msg.CampaignID, msg.LeadID, err)
		return err // transient: queue retries with backoff
	}

	parsed, err := ParseDraft(raw, followUpEnabled)
	if err != nil {
		log.Printf("⚠️ Invalid draft JSON for campaign=%s lead=%s: %v", msg.CampaignID, msg.LeadID, err)
		return err // content error: retried like a transient failure
	}

	subject := parsed.Subject
	if campaign.Settings.SubjectFromUser && strings.TrimSpace(campaign.Settings.Subject) != "" {
		subject = strings.TrimSpace(campaign.Settings.Subject)
	}

	followupSubject, followupBody := "", ""
	if followUpEnabled {
		followupSubject = parsed.FollowupSubject
		followupBody = parsed.FollowupBody
	}

	if err := s.CampaignRepo.UpdateLeadDrafts(
		campaignLead.ID, model.LeadDraftsCompleted,
		subject, parsed.Body, followupSubject, followupBody,
	); err != nil {
		return err
	}

	log.Printf("✅ Draft generated for campaign=%s lead=%s", msg.CampaignID, msg.LeadID)
	_, err = s.CampaignService.TryMarkCampaignDraftsCompleted(msg.CampaignID)
	return err
}

// ParseDraft decodes the generator output: a single JSON object, optionally
// wrapped in a markdown code fence, with subject and body (plus the
// follow-up pair when one was requested).
func ParseDraft(raw string, expectFollowUp bool) (*Draft, error) {
	trimmed := stripCodeFence(strings.TrimSpace(raw))

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, appErrors.ErrInvalidDraft
	}
	if _, ok := obj["subject"]; !ok {
		return nil, appErrors.ErrInvalidDraft
	}
	if _, ok := obj["body"]; !ok {
		return nil, appErrors.ErrInvalidDraft
	}

	var draft Draft
	if err := json.Unmarshal([]byte(trimmed), &draft); err != nil {
		return nil, appErrors.ErrInvalidDraft
	}
	draft.Subject = strings.TrimSpace(draft.Subject)
	draft.Body = strings.TrimSpace(draft.Body)

	if expectFollowUp {
		draft.FollowupSubject = strings.TrimSpace(draft.FollowupSubject)
		draft.FollowupBody = strings.TrimSpace(draft.FollowupBody)
	} else {
		draft.FollowupSubject = ""
		draft.FollowupBody = ""
	}
	return &draft, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Optional language tag on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{}") {
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// BuildDraftPrompt assembles the generation prompt from campaign and lead
// data. Pure function, so the generator call stays independently testable.
// The description is included verbatim and the prompt forbids the generator
// from inventing anything beyond it.
func BuildDraftPrompt(campaign *model.Campaign, lead *model.Lead, followUpEnabled bool) string {
	tone := campaign.Settings.Tone
	if tone == "" {
		tone = model.ToneProfessional
	}
	emailLength := campaign.Settings.EmailLength
	if emailLength == "" {
		emailLength = model.EmailLengthShort
	}
	campaignName := strings.TrimSpace(campaign.Name)
	if campaignName == "" {
		campaignName = "Campaign"
	}
	leadName := strings.TrimSpace(lead.Name)
	if leadName == "" {
		leadName = "Recipient"
	}
	description := strings.TrimSpace(campaign.Settings.Description)
	signature := strings.TrimSpace(campaign.Settings.Signature)

	additionalContext := ""
	if len(lead.AdditionalInfo) > 0 {
		info, _ := json.Marshal(lead.AdditionalInfo)
		additionalContext = fmt.Sprintf("Additional recipient context (use only if relevant): %s", info)
	}

	productContext := ""
	if description != "" {
		productContext = fmt.Sprintf("Product / Context you MAY reference (do not invent beyond this): %s", description)
	}

	signatureRule := "Do NOT add a signature."
	if signature != "" {
		signatureRule = fmt.Sprintf("Use this exact signature at the end of the email:\n%s", signature)
	}

	jsonShape := `{"subject": "<short subject line, under 10 words>", "body": "<email body as plain text or simple HTML>"}`
	followUpInstructions := ""
	if followUpEnabled {
		jsonShape = `{"subject": "<short subject line, under 10 words>", "body": "<email body as plain text or simple HTML>", "followupSubject": "<short follow-up subject, under 10 words>", "followupBody": "<follow-up email body as plain text or simple HTML>"}`
		followUpInstructions = fmt.Sprintf(`
Also provide a follow-up email (followupSubject and followupBody). The follow-up will be sent only if the recipient has NOT replied. It should:
- Be a gentle, friendly reminder (same tone and length as above).
- Reference the initial outreach without repeating it verbatim.
- Include a clear, low-friction ask (e.g. "Would you have a few minutes to connect?").
- %s
- Be concise and respectful.`, signatureRule)
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are writing a personalized sales outreach email.

Campaign: %q
Goal: outreach
Tone: %s
Length: %s

Recipient: %s (%s)
%s
%s

CRITICAL RULES (MUST FOLLOW):
- Do NOT invent a sender name, company name, product, role, or background.
- Do NOT invent features, benefits, metrics, or claims.
- Use ONLY the information explicitly provided above.
- If product or company context is missing, write a neutral, permission-based outreach.
- Do NOT assume the recipient's needs, tools, or priorities.
- %s
%s

Respond with valid JSON only, no other text.
Use exactly this shape:
%s

Keep the email concise, professional, and respectful.
`, campaignName, tone, emailLength, leadName, strings.TrimSpace(lead.Email),
		additionalContext, productContext, signatureRule, followUpInstructions, jsonShape))
}
