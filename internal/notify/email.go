package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// EmailMessage is one rendered email.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers rendered emails through one provider.
type EmailSender interface {
	Name() string
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider    string
	SendGridKey string
	SendGridURL string
	ResendKey   string
	ResendURL   string
	FromEmail   string
	FromName    string
}

// NewEmailSender returns the sender for cfg.Provider. Unknown providers get
// a sender that only logs.
func NewEmailSender(cfg EmailConfig, client *http.Client, log logrus.FieldLogger) EmailSender {
	switch strings.ToLower(cfg.Provider) {
	case "sendgrid", "":
		return &SendGrid{client: client, baseURL: strings.TrimRight(cfg.SendGridURL, "/"), apiKey: cfg.SendGridKey, fromEmail: cfg.FromEmail, fromName: cfg.FromName}
	case "resend":
		return &Resend{client: client, baseURL: strings.TrimRight(cfg.ResendURL, "/"), apiKey: cfg.ResendKey, fromEmail: cfg.FromEmail, fromName: cfg.FromName}
	default:
		log.WithField("provider", cfg.Provider).Warn("unsupported email provider, emails will not be sent")
		return &disabledEmail{provider: cfg.Provider, log: log}
	}
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	fromEmail string
	fromName  string
}

func (s *SendGrid) Name() string { return "sendgrid" }

func (s *SendGrid) Send(ctx context.Context, msg EmailMessage) error {
	type address struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	}
	type content struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	body := struct {
		Personalizations []map[string][]address `json:"personalizations"`
		From             address                `json:"from"`
		Subject          string                 `json:"subject"`
		Content          []content              `json:"content"`
	}{
		Personalizations: []map[string][]address{{"to": {{Email: msg.To}}}},
		From:             address{Email: s.fromEmail, Name: s.fromName},
		Subject:          msg.Subject,
		Content: []content{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	}
	return doJSON(ctx, s.client, s.Name(), http.MethodPost, s.baseURL+"/v3/mail/send",
		map[string]string{"Authorization": "Bearer " + s.apiKey}, body, nil)
}

// Resend sends mail through the Resend API.
type Resend struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	fromEmail string
	fromName  string
}

func (r *Resend) Name() string { return "resend" }

func (r *Resend) Send(ctx context.Context, msg EmailMessage) error {
	body := map[string]any{
		"from":    fmt.Sprintf("%s <%s>", r.fromName, r.fromEmail),
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
		"text":    msg.Text,
	}
	return doJSON(ctx, r.client, r.Name(), http.MethodPost, r.baseURL+"/emails",
		map[string]string{"Authorization": "Bearer " + r.apiKey}, body, nil)
}

type disabledEmail struct {
	provider string
	log      logrus.FieldLogger
}

func (d *disabledEmail) Name() string { return "disabled" }

func (d *disabledEmail) Send(_ context.Context, msg EmailMessage) error {
	d.log.WithFields(logrus.Fields{"provider": d.provider, "subject": msg.Subject}).Info("email skipped")
	return nil
}
