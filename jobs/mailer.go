package jobs

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers transactional mail. The shipped implementation talks
// plain SMTP to the configured relay (Mailpit in development).
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends through a single relay without auth.
type SMTPMailer struct {
	Addr string
	From string
}

// Send delivers one message.
func (m SMTPMailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("jobs: send mail: %w", err)
	}
	return nil
}
