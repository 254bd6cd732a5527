// Package provider wraps transactional-email APIs behind one interface.
// The dispatcher treats a backend as a black box: a message goes in, a
// provider-assigned message ID or an error comes back. Provider-specific
// error codes are never interpreted.
package provider

import (
	"context"
	"fmt"

	"github.com/ignite/optin-mailer/internal/config"
)

// Message is one outgoing email.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	Text     string // empty means no plain-text part
	HTML     string // empty means no html part
	Headers  map[string]string
}

// FromHeader renders the From value, with a display name when configured.
func (m *Message) FromHeader() string {
	if m.FromName != "" {
		return fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}
	return m.From
}

// Sender sends a single email and returns the provider's message ID.
type Sender interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
}

// FromConfig builds the configured backend.
func FromConfig(ctx context.Context, cfg *config.Config) (Sender, error) {
	switch cfg.Provider {
	case config.ProviderSparkPost:
		return NewSparkPost(cfg.SparkPost), nil
	case config.ProviderSES:
		return NewSES(ctx, cfg.SES)
	case config.ProviderResend:
		return NewResend(cfg.Resend), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
