package provider

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/ignite/optin-mailer/internal/config"
)

// Resend sends through the Resend API.
type Resend struct {
	client *resend.Client
}

// NewResend creates a Resend sender.
func NewResend(cfg config.ResendConfig) *Resend {
	return &Resend{client: resend.NewClient(cfg.APIKey)}
}

// Send submits a single email.
func (r *Resend) Send(ctx context.Context, msg *Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    msg.FromHeader(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
		Headers: msg.Headers,
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return sent.Id, nil
}
