package service_test

import (
	"strings"
	"testing"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/model"
	"github.com/followly/outreach-backend/internal/queue"
	"github.com/followly/outreach-backend/internal/service"
)

type emailFixture struct {
	email     *service.EmailService
	campaigns *service.CampaignService
	repo      *memCampaignRepo
	transport *mockTransport
	audit     *memEmailRepo
	queue     *recordingQueue
}

func newEmailFixture(allowlist string, leads ...*model.Lead) *emailFixture {
	repo := newMemCampaignRepo()
	leadRepo := newMemLeadRepo(leads...)
	userRepo := &memUserRepo{users: map[string]*model.User{
		testUserID: {ID: testUserID, Name: "Jane Doe", Email: "jane@followly.pro", EmailAllowlist: allowlist},
	}}
	q := &recordingQueue{}
	campaigns := &service.CampaignService{
		CampaignRepo: repo,
		LeadRepo:     leadRepo,
		UserRepo:     userRepo,
		Queue:        q,
	}
	transport := &mockTransport{}
	audit := &memEmailRepo{}
	email := &service.EmailService{
		CampaignRepo:    repo,
		LeadRepo:        leadRepo,
		UserRepo:        userRepo,
		EmailRepo:       audit,
		Transport:       transport,
		CampaignService: campaigns,
		ReplyDomain:     "reply.followly.pro",
	}
	return &emailFixture{email: email, campaigns: campaigns, repo: repo, transport: transport, audit: audit, queue: q}
}

// prepare creates a one-lead campaign with drafts persisted and the send
// phase started. The snapshot controls follow-up behavior.
func (f *emailFixture) prepare(t *testing.T, lead *model.Lead, snapshot *model.CampaignSettings) *model.Campaign {
	t.Helper()
	campaign, err := f.campaigns.CreateCampaign(testUserID, "Q4 Outreach", "", []string{lead.ID})
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	f.repo.MarkLeadsPhaseStarted(campaign.ID, model.LeadSendStarted, snapshot)
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	f.repo.UpdateLeadDrafts(cl.ID, model.LeadSendStarted,
		"Quick question", "Hi there,\nWould love to chat.", "Following up", "Just checking in.")
	f.repo.UpdateStatus(campaign.ID, model.CampaignSendStarted)
	return campaign
}

func TestInitialSendDeliversAndSchedulesFollowUp(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("ada@acme.test", lead)
	snapshot := &model.CampaignSettings{IsFollowUpEnabled: true, FollowUpDelay: model.DelayOneMinute, SenderName: "Jane Doe"}
	campaign := f.prepare(t, lead, snapshot)

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendCampaignEmails, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.transport.sentCount() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", f.transport.sentCount())
	}
	sent := f.transport.sent[0]
	if sent.To != "ada@acme.test" || sent.Subject != "Quick question" {
		t.Errorf("unexpected send %+v", sent)
	}
	if !strings.HasPrefix(sent.From, "Jane Doe <") {
		t.Errorf("expected sender name in From, got %q", sent.From)
	}
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	wantReplyTo := "cl-" + cl.ID + "@reply.followly.pro"
	if sent.ReplyTo != wantReplyTo {
		t.Errorf("expected Reply-To %q, got %q", wantReplyTo, sent.ReplyTo)
	}

	if f.audit.count() != 1 {
		t.Errorf("expected 1 audit entry, got %d", f.audit.count())
	}

	if cl.Status != model.LeadSendCompleted {
		t.Errorf("expected INITIAL_EMAILS_SEND_COMPLETED, got %s", cl.Status)
	}

	published := f.queue.all()
	if len(published) != 1 || !published[0].delayed || published[0].msg.Job != queue.JobSendFollowUpEmail {
		t.Fatalf("expected one delayed follow-up job, got %+v", published)
	}

	// Follow-up outstanding, so send phase done but campaign not completed.
	got, _ := f.repo.GetByID(campaign.ID)
	if got.Status != model.CampaignSendCompleted {
		t.Errorf("expected INITIAL_EMAILS_SEND_COMPLETED, got %s", got.Status)
	}
}

func TestInitialSendWithoutFollowUpCompletesCampaign(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("ada@acme.test", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: false})

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendCampaignEmails, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	if cl.Status != model.LeadCompleted {
		t.Errorf("expected COMPLETED, got %s", cl.Status)
	}
	got, _ := f.repo.GetByID(campaign.ID)
	if got.Status != model.CampaignCompleted {
		t.Errorf("expected campaign COMPLETED, got %s", got.Status)
	}
	if len(f.queue.all()) != 0 {
		t.Error("no follow-up should be scheduled when disabled")
	}
}

func TestInitialSendEmptyAllowlistAuditsWithoutDispatch(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: false})

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendCampaignEmails, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.transport.sentCount() != 0 {
		t.Errorf("expected no dispatch with empty allowlist, got %d", f.transport.sentCount())
	}
	if f.audit.count() != 1 {
		t.Errorf("audit entry must still be written, got %d", f.audit.count())
	}
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	if cl.Status != model.LeadCompleted {
		t.Errorf("lead should still advance, got %s", cl.Status)
	}
}

func TestInitialSendLeadWithoutEmailAdvances(t *testing.T) {
	lead := testLead("Ada", "")
	f := newEmailFixture("ada@acme.test", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: true})

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendCampaignEmails, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.transport.sentCount() != 0 || f.audit.count() != 0 {
		t.Error("no send and no audit for a lead without an address")
	}
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	if cl.Status != model.LeadSendCompleted {
		t.Errorf("expected status advanced, got %s", cl.Status)
	}
	// Nothing was sent, so no follow-up either.
	if len(f.queue.all()) != 0 {
		t.Error("follow-up scheduled although nothing was sent")
	}
}

func TestInitialSendUnknownCampaignLeadSkips(t *testing.T) {
	f := newEmailFixture("")
	err := f.email.HandleSendEmail(queue.Message{
		Job:        queue.JobSendCampaignEmails,
		CampaignID: "11111111-1111-4111-8111-111111111111",
		LeadID:     "22222222-2222-4222-8222-222222222222",
	})
	if err != nil {
		t.Errorf("expected skip for unknown entities, got %v", err)
	}
}

func TestFollowUpSkippedWhenReplyArrivedFirst(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("ada@acme.test", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: true, FollowUpDelay: model.DelayOneMinute})

	// The reply lands before the delayed job fires.
	if err := f.campaigns.MarkReplyReceived(campaign.ID, lead.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendFollowUpEmail, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}

	if f.transport.sentCount() != 0 {
		t.Error("follow-up must not be sent after a reply")
	}
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	if cl.IsFollowUpEmailSent {
		t.Error("follow-up flag set although nothing was sent")
	}
	got, _ := f.repo.GetByID(campaign.ID)
	if got.Status != model.CampaignCompleted {
		t.Errorf("reply already completed the campaign, got %s", got.Status)
	}
}

func TestFollowUpSendCompletesCampaign(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("ada@acme.test", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: true, FollowUpDelay: model.DelayOneMinute})
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	f.repo.UpdateLeadStatus(cl.ID, model.LeadSendCompleted)

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendFollowUpEmail, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.transport.sentCount() != 1 {
		t.Fatalf("expected 1 follow-up dispatch, got %d", f.transport.sentCount())
	}
	if f.transport.sent[0].Subject != "Following up" {
		t.Errorf("expected the follow-up draft subject, got %q", f.transport.sent[0].Subject)
	}

	cl, _ = f.repo.GetLead(campaign.ID, lead.ID)
	if !cl.IsFollowUpEmailSent || cl.Status != model.LeadCompleted {
		t.Errorf("expected follow-up flags and COMPLETED, got %+v", cl)
	}
	got, _ := f.repo.GetByID(campaign.ID)
	if got.Status != model.CampaignCompleted {
		t.Errorf("expected campaign COMPLETED after last follow-up, got %s", got.Status)
	}
}

func TestFollowUpSubjectFallsBackToInitialSubject(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("ada@acme.test", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: true})
	cl, _ := f.repo.GetLead(campaign.ID, lead.ID)
	// No dedicated follow-up draft.
	f.repo.UpdateLeadDrafts(cl.ID, model.LeadSendCompleted, "Quick question", "Hi there,\nWould love to chat.", "", "")

	err := f.email.HandleSendEmail(queue.Message{
		Job: queue.JobSendFollowUpEmail, CampaignID: campaign.ID, LeadID: lead.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := f.transport.sent[0]
	if sent.Subject != "Re: Quick question (follow-up)" {
		t.Errorf("unexpected fallback subject %q", sent.Subject)
	}
	if !strings.Contains(sent.HTML, "Hi there,") {
		t.Errorf("fallback body should quote the first line, got %q", sent.HTML)
	}
}

func TestFollowUpDoubleDeliveryIsIdempotent(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("ada@acme.test", lead)
	campaign := f.prepare(t, lead, &model.CampaignSettings{IsFollowUpEnabled: true})

	msg := queue.Message{Job: queue.JobSendFollowUpEmail, CampaignID: campaign.ID, LeadID: lead.ID}
	if err := f.email.HandleSendEmail(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.email.HandleSendEmail(msg); err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}

	if f.transport.sentCount() != 1 {
		t.Errorf("duplicate delivery sent %d emails, want 1", f.transport.sentCount())
	}
}

func TestListLeadEmailsOwnership(t *testing.T) {
	lead := testLead("Ada", "ada@acme.test")
	f := newEmailFixture("", lead)
	campaign := f.prepare(t, lead, nil)

	f.audit.Create(&model.Email{LeadID: lead.ID, CampaignID: campaign.ID, Direction: model.EmailOutbound, Subject: "Hi"})

	emails, err := f.email.ListLeadEmails(lead.ID, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emails) != 1 {
		t.Errorf("expected 1 audit entry, got %d", len(emails))
	}

	if _, err := f.email.ListLeadEmails(lead.ID, "5f9f1c2e-0000-4000-8000-00000000dead"); !appErrors.IsNotFound(err) {
		t.Errorf("expected not-found for foreign user, got %v", err)
	}
}

func TestPlainTextToHTML(t *testing.T) {
	got := service.PlainTextToHTML("Hi <Ada> & team,\nsee you soon")
	want := "Hi &lt;Ada&gt; &amp; team,<br>\nsee you soon"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if service.PlainTextToHTML("") != "" {
		t.Error("empty input should stay empty")
	}
}
