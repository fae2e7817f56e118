package queue

import (
	"log"
	"sync"
	"time"
)

// Queue names shared between the API (producer) and the worker binaries
// (consumers).
const (
	EmailDraftsQueue = "email-drafts"
	SendEmailQueue   = "send-email"
)

// Job names carried inside the message body.
const (
	JobGenerateDrafts     = "generate-drafts"
	JobSendCampaignEmails = "send-campaign-emails"
	JobSendFollowUpEmail  = "send-follow-up-email"
)

// Retry policy applied uniformly across all queues: up to 3 total attempts
// with exponential backoff (5s, 10s, then dead).
const (
	MaxAttempts = 3
	BackoffBase = 5 * time.Second
)

// Backoff returns the delay before the given retry (attempt is 1-based:
// attempt 1 is the first retry).
func Backoff(attempt int) time.Duration {
	d := BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Message is the work item payload. One message per (campaign, lead).
type Message struct {
	Job        string `json:"job"`
	CampaignID string `json:"campaign_id"`
	LeadID     string `json:"lead_id"`
}

// Queue interface
type Queue interface {
	Publish(topic string, msg Message) error
	PublishDelayed(topic string, msg Message, delay time.Duration) error
}

// Handler processes one message. A returned error triggers a retry until
// MaxAttempts is exhausted; handlers must tolerate at-least-once execution.
type Handler func(msg Message) error

// InMemoryQueue runs handlers in-process with the same retry/backoff policy
// as the broker-backed queue. Used in tests and single-process dev mode.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string]Handler
	wg       sync.WaitGroup

	// Sleep is swappable so tests do not wait out real backoff.
	Sleep func(d time.Duration)
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string]Handler),
		Sleep:    time.Sleep,
	}
}

// Subscribe registers the handler for a topic. One handler per topic.
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = handler
}

// Publish delivers the message to the topic's handler on a new goroutine.
func (q *InMemoryQueue) Publish(topic string, msg Message) error {
	q.mu.Lock()
	handler := q.handlers[topic]
	q.mu.Unlock()

	if handler == nil {
		log.Printf("⚠️ no subscriber for topic %s, dropping %s", topic, msg.Job)
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.processJob(topic, handler, msg)
	}()
	return nil
}

// PublishDelayed delivers the message after the given delay.
func (q *InMemoryQueue) PublishDelayed(topic string, msg Message, delay time.Duration) error {
	q.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer q.wg.Done()
		q.mu.Lock()
		handler := q.handlers[topic]
		q.mu.Unlock()
		if handler == nil {
			log.Printf("⚠️ no subscriber for topic %s, dropping delayed %s", topic, msg.Job)
			return
		}
		q.processJob(topic, handler, msg)
	})
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler Handler, msg Message) {
	for attempt := 1; ; attempt++ {
		err := handler(msg)
		if err == nil {
			return // ACK
		}

		log.Printf("Job failed (attempt %d/%d) topic=%s job=%s campaign=%s lead=%s: %v",
			attempt, MaxAttempts, topic, msg.Job, msg.CampaignID, msg.LeadID, err)

		if attempt >= MaxAttempts {
			log.Printf("Job permanently failed after %d attempts: %+v", MaxAttempts, msg)
			return // dead, no requeue
		}

		q.Sleep(Backoff(attempt))
	}
}

// Wait blocks until all published jobs (including delayed ones) finish.
// Test helper.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ Queue = (*InMemoryQueue)(nil)
