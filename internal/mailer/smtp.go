// internal/mailer/smtp.go
package mailer

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// SMTPTransport sends mail through a plain SMTP relay.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

func NewSMTPTransportFromEnv() (*SMTPTransport, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, errors.New("SMTP_HOST not provided")
	}
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	user := os.Getenv("SMTP_USERNAME")
	pass := os.Getenv("SMTP_PASSWORD")

	return &SMTPTransport{
		dialer: gomail.NewDialer(host, port, user, pass),
	}, nil
}

func (t *SMTPTransport) Send(opts SendOptions) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", opts.From)
	msg.SetHeader("To", opts.To)
	msg.SetHeader("Subject", opts.Subject)
	if opts.ReplyTo != "" {
		msg.SetHeader("Reply-To", opts.ReplyTo)
	}
	msg.SetBody("text/html", opts.HTML)

	return t.dialer.DialAndSend(msg)
}

var _ Transport = (*SMTPTransport)(nil)
