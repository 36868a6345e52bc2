// Package mailer renders the transactional email templates and delivers
// them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"sync"

	"go.uber.org/zap"
)

// Template names.
const (
	TemplateOTP             = "otp"
	TemplateWelcome         = "welcome"
	TemplatePasswordReset   = "password_reset"
	TemplateListingApproved = "listing_approved"
	TemplateListingRejected = "listing_rejected"
)

var subjects = map[string]string{
	TemplateOTP:             "Your verification code",
	TemplateWelcome:         "Welcome!",
	TemplatePasswordReset:   "Reset your password",
	TemplateListingApproved: "Your listing has been approved",
	TemplateListingRejected: "Your listing was not approved",
}

var ErrUnknownTemplate = errors.New("unknown email template")

//go:embed templates/*.html
var templateFS embed.FS

// Message is one templated email. It is also the payload of queued
// notifications, so it only holds plain strings.
type Message struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Data     map[string]string `json:"data,omitempty"`
}

// Sender delivers a fully rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Mailer renders Messages and hands them to a Sender.
type Mailer struct {
	sender  Sender
	siteURL string

	once  sync.Once
	tmpls map[string]*template.Template
	err   error
}

func New(sender Sender, siteURL string) *Mailer {
	return &Mailer{sender: sender, siteURL: siteURL}
}

func (m *Mailer) load() {
	m.tmpls = make(map[string]*template.Template, len(subjects))
	for name := range subjects {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			m.err = fmt.Errorf("parse template %s: %w", name, err)
			return
		}
		m.tmpls[name] = t
	}
}

// Render returns the subject and HTML body for msg.
func (m *Mailer) Render(msg Message) (string, string, error) {
	m.once.Do(m.load)
	if m.err != nil {
		return "", "", m.err
	}
	t, ok := m.tmpls[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, msg.Template)
	}
	subject := subjects[msg.Template]
	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "base.html", map[string]any{
		"Subject": subject,
		"SiteURL": m.siteURL,
		"Data":    msg.Data,
	})
	if err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", msg.Template, err)
	}
	return subject, buf.String(), nil
}

// Send renders msg and delivers it.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("email recipient is required")
	}
	subject, body, err := m.Render(msg)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg.To, subject, body)
}

// LogSender only logs outgoing mail. It is used when no SMTP host is set.
type LogSender struct{ Logger *zap.Logger }

func (s LogSender) Send(_ context.Context, to, subject, _ string) error {
	if s.Logger != nil {
		s.Logger.Info("email not sent, smtp disabled", zap.String("to", to), zap.String("subject", subject))
	}
	return nil
}
