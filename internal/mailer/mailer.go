// internal/mailer/mailer.go
package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
)

// OutgoingMail is one email to one recipient. Other recipients of the
// same sending never share a message, so addresses are not exposed.
type OutgoingMail struct {
	To          string
	From        string
	Subject     string
	HTML        string
	Text        string
	Attachments []string
}

// Sender dispatches a single email and reports its own failure only;
// callers decide whether a failed recipient aborts anything.
type Sender interface {
	Send(m OutgoingMail) error
}

// SMTPSender sends through a plain-auth SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTP.Host,
		port:     cfg.SMTP.Port,
		username: cfg.SMTP.Username,
		password: cfg.SMTP.Password,
	}
}

func (s *SMTPSender) Send(m OutgoingMail) error {
	e := email.NewEmail()
	e.From = m.From
	e.To = []string{m.To}
	e.Subject = m.Subject
	if m.HTML != "" {
		e.HTML = []byte(m.HTML)
	}
	if m.Text != "" {
		e.Text = []byte(m.Text)
	}

	for _, path := range m.Attachments {
		if _, err := e.AttachFile(path); err != nil {
			return fmt.Errorf("failed to attach %s: %w", path, err)
		}
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
