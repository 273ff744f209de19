package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig configures the email backend.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// OwnerAddress receives the new-booking alerts.
	OwnerAddress string
}

// SMTPSender delivers notifications over plain SMTP.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds the sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// Send formats and delivers the message for the given kind.
func (s *SMTPSender) Send(ctx context.Context, kind Kind, f Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to, subject, body := s.compose(kind, f)
	if to == "" {
		return fmt.Errorf("no recipient for %s", kind)
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}

func (s *SMTPSender) compose(kind Kind, f Fields) (to, subject, body string) {
	name := strings.TrimSpace(f.FirstName + " " + f.LastName)
	when := fmt.Sprintf("%s at %s", f.SlotDate, f.SlotTime)

	switch kind {
	case KindOwnerAlert:
		to = s.cfg.OwnerAddress
		subject = "New appointment booked"
		body = fmt.Sprintf("%s (%s) booked the slot on %s.", name, f.Email, when)
		if f.RemoteInterview {
			body += "\nRemote interview requested."
		}
	case KindClientConfirmation:
		to = f.Email
		subject = "Your appointment is confirmed"
		if f.RemoteInterview {
			body = fmt.Sprintf(
				"Hi %s,\n\nYour remote appointment on %s is confirmed. A video link will follow separately.",
				f.FirstName, when)
		} else {
			body = fmt.Sprintf(
				"Hi %s,\n\nYour appointment on %s is confirmed. We look forward to seeing you.",
				f.FirstName, when)
		}
	}
	return to, subject, body
}
