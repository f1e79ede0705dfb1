// Package mail sends operational notifications: generated credentials
// for new accounts and inactivity notices for administrators.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/99004433/Multi-tenant-IAM/internal/obs"
)

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// UserCreated builds the credentials notice sent when an account is
// created with a generated password.
func UserCreated(email, password string) Message {
	return Message{
		To:      email,
		Subject: "Your account has been created",
		Body: fmt.Sprintf("Hello,\n\nAn account has been created for you.\n\nUsername: %s\nPassword: %s\n\nPlease change your password after your first login.\n",
			email, password),
	}
}

// InactiveUsers builds the administrator notice listing accounts the
// sweep just deactivated.
func InactiveUsers(adminAddr string, emails []string) Message {
	return Message{
		To:      adminAddr,
		Subject: "Accounts deactivated for inactivity",
		Body: fmt.Sprintf("The following accounts were deactivated after a period of inactivity:\n\n%s\n",
			strings.Join(emails, "\n")),
	}
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

// SMTPSender delivers mail over plain SMTP with optional AUTH.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender validates the config and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("mail: smtp addr is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("mail: from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail: recipient is required")
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		host := s.cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}
	data := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.cfg.From, msg.To, msg.Subject, msg.Body)
	return smtp.SendMail(s.cfg.Addr, auth, s.cfg.From, []string{msg.To}, []byte(data))
}

// LogSender writes messages to the structured log instead of
// delivering them. Used when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	obs.LogEntry(map[string]any{
		"level":   "info",
		"msg":     "mail_logged",
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}
