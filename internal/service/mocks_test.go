package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/mailer"
	"github.com/followly/outreach-backend/internal/model"
	"github.com/followly/outreach-backend/internal/queue"
	"github.com/followly/outreach-backend/internal/repository"
)

// In-memory fakes shared by the service tests. They mirror the SQL
// repositories' behavior closely enough for the state machine: not-found
// point lookups return (nil, nil), campaign lookups return the typed error.

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
	leads     []*model.CampaignLead

	// statusWrites records every campaign status update in order, so tests
	// can assert the aggregator's idempotence.
	statusWrites []model.CampaignStatus
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[string]*model.Campaign{}}
}

func (m *memCampaignRepo) Create(c *model.Campaign, leadIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.LeadsCount = len(leadIDs)
	m.campaigns[c.ID] = c
	for _, leadID := range leadIDs {
		m.leads = append(m.leads, &model.CampaignLead{
			ID:         uuid.NewString(),
			CampaignID: c.ID,
			LeadID:     leadID,
			Status:     model.LeadNotStarted,
			CreatedAt:  c.CreatedAt,
		})
	}
	return nil
}

func (m *memCampaignRepo) GetByID(id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

func (m *memCampaignRepo) GetByIDAndUser(id, userID string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok && c.UserID == userID {
		copied := *c
		return &copied, nil
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

func (m *memCampaignRepo) ListByUser(userID string) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.UserID == userID {
			copied := *c
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *memCampaignRepo) UpdateStatus(campaignID string, status model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return nil
	}
	c.Status = status
	m.statusWrites = append(m.statusWrites, status)
	return nil
}

func (m *memCampaignRepo) UpdateSettings(campaignID, userID string, settings model.CampaignSettings) (*model.Campaign, error) {
	m.mu.Lock()
	c, ok := m.campaigns[campaignID]
	if !ok || c.UserID != userID {
		m.mu.Unlock()
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	c.Settings = settings
	m.mu.Unlock()
	return m.GetByIDAndUser(campaignID, userID)
}

func (m *memCampaignRepo) MarkLeadsPhaseStarted(campaignID string, status model.CampaignLeadStatus, snapshot *model.CampaignSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.CampaignID != campaignID {
			continue
		}
		cl.Status = status
		if snapshot != nil {
			frozen := *snapshot
			cl.Settings = &frozen
		}
	}
	return nil
}

func (m *memCampaignRepo) ListLeadIDs(campaignID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for _, cl := range m.leads {
		if cl.CampaignID == campaignID {
			ids = append(ids, cl.LeadID)
		}
	}
	return ids, nil
}

func (m *memCampaignRepo) GetLead(campaignID, leadID string) (*model.CampaignLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.CampaignID == campaignID && cl.LeadID == leadID {
			copied := *cl
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memCampaignRepo) GetLeadByID(id string) (*model.CampaignLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.ID == id {
			copied := *cl
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memCampaignRepo) UpdateLeadDrafts(id string, status model.CampaignLeadStatus, subject, body, followupSubject, followupBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.ID == id {
			cl.Status = status
			cl.SubjectDraft = subject
			cl.EmailDraft = body
			cl.FollowupSubjectDraft = followupSubject
			cl.FollowupEmailDraft = followupBody
		}
	}
	return nil
}

func (m *memCampaignRepo) UpdateLeadStatus(id string, status model.CampaignLeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.ID == id {
			cl.Status = status
		}
	}
	return nil
}

func (m *memCampaignRepo) MarkFollowUpSent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, cl := range m.leads {
		if cl.ID == id {
			cl.IsFollowUpEmailSent = true
			cl.FollowUpEmailSentAt = &now
			cl.Status = model.LeadCompleted
		}
	}
	return nil
}

func (m *memCampaignRepo) MarkReplyReceived(campaignID, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, cl := range m.leads {
		if cl.CampaignID == campaignID && cl.LeadID == leadID {
			cl.IsReplyReceived = true
			cl.ReplyReceivedAt = &now
			cl.Status = model.LeadCompleted
		}
	}
	return nil
}

func (m *memCampaignRepo) ListLeads(campaignID string) ([]*model.CampaignLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*model.CampaignLead{}
	for _, cl := range m.leads {
		if cl.CampaignID == campaignID {
			copied := *cl
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *memCampaignRepo) HasLeadOutsideStatuses(campaignID string, accepted []model.CampaignLeadStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.CampaignID != campaignID {
			continue
		}
		ok := false
		for _, s := range accepted {
			if cl.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCampaignRepo) leadByID(id string) *model.CampaignLead {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.leads {
		if cl.ID == id {
			copied := *cl
			return &copied
		}
	}
	return nil
}

var _ repository.CampaignRepositoryInterface = (*memCampaignRepo)(nil)

type memLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
}

func newMemLeadRepo(leads ...*model.Lead) *memLeadRepo {
	m := &memLeadRepo{leads: map[string]*model.Lead{}}
	for _, l := range leads {
		m.leads[l.ID] = l
	}
	return m
}

func (m *memLeadRepo) GetByID(id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (m *memLeadRepo) CountOwnedByUser(userID string, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range ids {
		if l, ok := m.leads[id]; ok && l.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *memLeadRepo) ListByUser(userID string) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []model.Lead{}
	for _, l := range m.leads {
		if l.UserID == userID {
			result = append(result, *l)
		}
	}
	return result, nil
}

var _ repository.LeadRepositoryInterface = (*memLeadRepo)(nil)

type memUserRepo struct {
	users map[string]*model.User
}

func (m *memUserRepo) GetByID(id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

var _ repository.UserRepositoryInterface = (*memUserRepo)(nil)

type memEmailRepo struct {
	mu     sync.Mutex
	emails []model.Email
}

func (m *memEmailRepo) Create(e *model.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	m.emails = append(m.emails, *e)
	return nil
}

func (m *memEmailRepo) ListByLead(leadID string) ([]model.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []model.Email{}
	for _, e := range m.emails {
		if e.LeadID == leadID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *memEmailRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

var _ repository.EmailRepositoryInterface = (*memEmailRepo)(nil)

// recordingQueue captures publishes instead of delivering them.
type recordingQueue struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	topic   string
	msg     queue.Message
	delayed bool
	delay   time.Duration
}

func (q *recordingQueue) Publish(topic string, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{topic: topic, msg: msg})
	return nil
}

func (q *recordingQueue) PublishDelayed(topic string, msg queue.Message, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{topic: topic, msg: msg, delayed: true, delay: delay})
	return nil
}

func (q *recordingQueue) all() []publishedMsg {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]publishedMsg{}, q.published...)
}

var _ queue.Queue = (*recordingQueue)(nil)

// mockGenerator returns canned output per lead name, or an error.
type mockGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	// failFor makes Generate fail only for prompts containing the substring.
	failFor string
	calls   int
}

func (g *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failFor != "" && strings.Contains(prompt, g.failFor) {
		return "", errors.New("generator unavailable")
	}
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// mockTransport records sends.
type mockTransport struct {
	mu   sync.Mutex
	sent []mailer.SendOptions
	err  error
}

func (t *mockTransport) Send(opts mailer.SendOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, opts)
	return nil
}

func (t *mockTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

var _ mailer.Transport = (*mockTransport)(nil)
