// internal/mailer/resend.go
package mailer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ResendTransport sends mail through the Resend HTTP API.
type ResendTransport struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewResendTransport(apiKey string) (*ResendTransport, error) {
	if apiKey == "" {
		return nil, errors.New("Resend API key not provided")
	}
	return &ResendTransport{
		apiKey:  apiKey,
		baseURL: "https://api.resend.com",
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo []string `json:"reply_to,omitempty"`
}

func (t *ResendTransport) Send(opts SendOptions) error {
	reqBody := resendRequest{
		From:    opts.From,
		To:      []string{opts.To},
		Subject: opts.Subject,
		HTML:    opts.HTML,
	}
	if opts.ReplyTo != "" {
		reqBody.ReplyTo = []string{opts.ReplyTo}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", t.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Resend send failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

var _ Transport = (*ResendTransport)(nil)
