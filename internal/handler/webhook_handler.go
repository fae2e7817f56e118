// internal/handler/webhook_handler.go
package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/followly/outreach-backend/internal/model"
	"github.com/followly/outreach-backend/internal/repository"
	"github.com/followly/outreach-backend/internal/service"
)

const clPrefix = "cl-"

// WebhookHandler receives inbound-email events from the mail provider.
// Outbound Reply-To is cl-{campaignLeadId}@domain, so the local part of the
// receiving address resolves the campaign lead.
type WebhookHandler struct {
	CampaignService *service.CampaignService
	EmailRepo       repository.EmailRepositoryInterface

	// Secret is the provider webhook signing secret ("whsec_..." form).
	Secret string
}

type inboundEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string   `json:"email_id"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
		Text    string   `json:"text"`
	} `json:"data"`
}

// HandleInboundEmail verifies the signature, resolves the campaign lead from
// the To address, records the inbound message, and marks the reply received.
func (h *WebhookHandler) HandleInboundEmail(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 {
		http.Error(w, "missing raw body", http.StatusUnprocessableEntity)
		return
	}

	if h.Secret == "" {
		log.Println("⚠️ Webhook secret not configured, rejecting event")
		http.Error(w, "webhook secret not configured", http.StatusUnprocessableEntity)
		return
	}

	if err := verifySignature(h.Secret, payload, r.Header); err != nil {
		log.Println("⚠️ Webhook verification failed:", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event inboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	log.Println("📥 Webhook verified, type:", event.Type)

	if event.Type == "email.received" {
		h.processReceived(event)
	}

	writeJSON(w, map[string]bool{"received": true})
}

func (h *WebhookHandler) processReceived(event inboundEvent) {
	campaignLeadID := parseCampaignLeadID(event.Data.To)
	if campaignLeadID == "" {
		log.Println("⚠️ Webhook: could not parse campaign lead from To address")
		return
	}

	campaignLead, err := h.CampaignService.CampaignRepo.GetLeadByID(campaignLeadID)
	if err != nil {
		log.Println("⚠️ Webhook: campaign lead lookup failed:", err)
		return
	}
	if campaignLead == nil {
		log.Println("⚠️ Webhook: no campaign lead found for id", campaignLeadID)
		return
	}

	subject := event.Data.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	body := event.Data.HTML
	if body == "" {
		body = event.Data.Text
	}

	if err := h.EmailRepo.Create(&model.Email{
		LeadID:     campaignLead.LeadID,
		CampaignID: campaignLead.CampaignID,
		Direction:  model.EmailInbound,
		Subject:    subject,
		Body:       body,
	}); err != nil {
		log.Println("⚠️ Webhook: failed to record inbound email:", err)
	}

	if err := h.CampaignService.MarkReplyReceived(campaignLead.CampaignID, campaignLead.LeadID); err != nil {
		log.Println("⚠️ Webhook: failed to mark reply received:", err)
		return
	}
	log.Printf("✅ Recorded inbound reply for lead %s campaign %s", campaignLead.LeadID, campaignLead.CampaignID)
}

// parseCampaignLeadID extracts the campaign lead id from the receiving
// addresses. Handles "Name <cl-id@domain>" forms; returns "" if no address
// carries a valid id.
func parseCampaignLeadID(toAddresses []string) string {
	for _, raw := range toAddresses {
		addr := strings.TrimSpace(raw)
		if open := strings.LastIndexByte(addr, '<'); open >= 0 {
			if close := strings.IndexByte(addr[open:], '>'); close > 0 {
				addr = addr[open+1 : open+close]
			}
		}
		at := strings.IndexByte(addr, '@')
		if at <= 0 {
			continue
		}
		local := strings.ToLower(strings.TrimSpace(addr[:at]))
		if !strings.HasPrefix(local, clPrefix) {
			continue
		}
		id := strings.TrimPrefix(local, clPrefix)
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return ""
}

// verifySignature checks the svix-style HMAC: base64(HMAC-SHA256(secret,
// "{id}.{timestamp}.{payload}")) against the space-separated v1 signatures.
func verifySignature(secret string, payload []byte, headers http.Header) error {
	id := headers.Get("svix-id")
	timestamp := headers.Get("svix-timestamp")
	signatures := headers.Get("svix-signature")
	if id == "" || timestamp == "" || signatures == "" {
		return errors.New("missing svix headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("invalid timestamp")
	}
	if diff := time.Since(time.Unix(ts, 0)); diff > 5*time.Minute || diff < -5*time.Minute {
		return errors.New("timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return errors.New("malformed secret")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(signatures) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		if hmac.Equal([]byte(parts[1]), []byte(expected)) {
			return nil
		}
	}
	return errors.New("no matching signature")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
