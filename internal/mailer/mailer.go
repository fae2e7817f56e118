// internal/mailer/mailer.go
package mailer

import (
	"fmt"
	"log"
	"os"
)

// SendOptions carries one outbound message. ReplyTo is optional; when set,
// recipient replies route back through the inbound webhook.
type SendOptions struct {
	From    string
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// Transport delivers a single message. Failures propagate as job failures
// so the queue retries.
type Transport interface {
	Send(opts SendOptions) error
}

// NewFromEnv selects the transport via MAIL_DRIVER (resend, smtp, log).
func NewFromEnv() (Transport, error) {
	switch driver := os.Getenv("MAIL_DRIVER"); driver {
	case "resend":
		return NewResendTransport(os.Getenv("RESEND_API_KEY"))
	case "smtp":
		return NewSMTPTransportFromEnv()
	case "", "log":
		log.Println("⚠️ MAIL_DRIVER not set, emails will be logged, not sent")
		return LogTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown MAIL_DRIVER: %s", driver)
	}
}

// LogTransport logs instead of sending. Dev fallback.
type LogTransport struct{}

func (LogTransport) Send(opts SendOptions) error {
	log.Printf("📧 [log transport] to=%s subject=%q", opts.To, opts.Subject)
	return nil
}
