package invites

import (
	"context"
	"net/smtp"
	"strings"
	"time"

	"medshift/config"
	"medshift/core/utils"
)

// Sender delivers a single invite mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) Sender {
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) Send(_ context.Context, to, subject, body string) error {
	host := s.cfg.SMTPAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
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
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}
	return smtp.SendMail(s.cfg.SMTPAddr, auth, s.cfg.From, []string{to}, []byte(msg))
}

// logSender is used when no SMTP host is configured, mail content goes to
// the application log instead of the wire.
type logSender struct {
	logger *utils.Logger
}

func NewLogSender(logger *utils.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, to, subject, body string) error {
	if s.logger != nil {
		s.logger.Printf("mail (not sent) to=%s subject=%q body=%q", to, subject, body)
	}
	return nil
}

// renderTemplate substitutes the known placeholders into a mail template.
func renderTemplate(tmpl, name, tenantName, inviteURL string, expires time.Time) string {
	replacements := map[string]string{
		"{name}":       name,
		"{tenant}":     tenantName,
		"{invite_url}": inviteURL,
		"{expires}":    expires.UTC().Format(time.RFC3339),
	}
	out := tmpl
	for k, v := range replacements {
		out = strings.ReplaceAll(out, k, v)
	}
	return out
}
