// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/followly/outreach-backend/internal/errors"
	"github.com/followly/outreach-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	EmailService    *service.EmailService
}

// userID reads the owner id resolved by the auth gateway in front of this
// service. Identity resolution itself is out of scope here.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case appErrors.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		LeadIDs     []string `json:"lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(userID(r), body.Name, body.Description, body.LeadIDs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.CampaignService.ListCampaigns(userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": campaigns})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.FindOne(chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) GetCampaignLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := c.CampaignService.FindCampaignLeads(chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": leads})
}

// PollCampaign serves the lightweight snapshot the UI polls while a phase
// runs: campaign status plus per-lead status and drafts.
func (c *CampaignController) PollCampaign(w http.ResponseWriter, r *http.Request) {
	poll, err := c.CampaignService.FindPollData(chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

func (c *CampaignController) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch service.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.UpdateSettings(chi.URLParam(r, "id"), userID(r), patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// GenerateEmailDrafts starts the draft phase. Responds 202: the work happens
// on the draft queue.
func (c *CampaignController) GenerateEmailDrafts(w http.ResponseWriter, r *http.Request) {
	result, err := c.CampaignService.EnqueueGenerateDrafts(chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// LaunchCampaign starts the send phase. Responds 202.
func (c *CampaignController) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	result, err := c.CampaignService.LaunchCampaign(chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// ListLeadEmails returns the audit trail for one lead.
func (c *CampaignController) ListLeadEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := c.EmailService.ListLeadEmails(chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": emails})
}
