// Package template renders the opt-in message content. Placeholders use the
// {variable} form; substitution is a single pass with a defined
// missing-key-renders-empty policy, so a bad list never breaks a send.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"sort"

	"github.com/ignite/optin-mailer/internal/subscriber"
)

// Template is the parametrized message sent to every subscriber.
type Template struct {
	Subject         string `json:"subject"`
	Text            string `json:"text,omitempty"`
	HTML            string `json:"html,omitempty"`
	ConfirmationURL string `json:"confirmationUrl"`
}

// Rendered is the per-subscriber output. HTML is empty when the template
// defines no html part; callers must not send an empty html body.
type Rendered struct {
	Subject         string
	Text            string
	HTML            string
	ConfirmationURL string
}

// Preflight reports whether a subscriber record supplies every variable the
// template needs, before any real send happens.
type Preflight struct {
	Valid     bool
	Missing   []string
	Available []string
	Required  []string
}

// ErrInvalid wraps template validation failures so callers can tell them
// apart from file and JSON errors.
var ErrInvalid = errors.New("invalid template")

// placeholderRe matches {identifier} with word characters only inside the
// braces. Anything else, including nested or empty braces, passes through.
var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Load reads and validates a JSON template file. The three failure classes
// stay distinguishable: file not found, invalid JSON, validation failure.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("template file not found: %s", path)
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("template %s is not valid JSON: %w", path, err)
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return &tpl, nil
}

// Validate enforces the required field set: subject, confirmationUrl, and at
// least one of text/html.
func (t *Template) Validate() error {
	if t.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalid)
	}
	if t.ConfirmationURL == "" {
		return fmt.Errorf("%w: confirmationUrl is required", ErrInvalid)
	}
	if t.Text == "" && t.HTML == "" {
		return fmt.Errorf("%w: at least one of text or html is required", ErrInvalid)
	}
	return nil
}

// Render substitutes every {identifier} in s with data[identifier],
// or the empty string when the key is absent. Substituted values are not
// rescanned for placeholders.
func Render(s string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		return data[m[1:len(m)-1]]
	})
}

// RenderForSubscriber assembles the full data context for one recipient and
// renders all template parts. The confirmation URL is rendered first with
// the email percent-encoded, so the link stays a valid URL even for
// addresses with reserved characters; the rendered link is then available to
// the message bodies as {confirmation_url}.
func (t *Template) RenderForSubscriber(sub subscriber.Subscriber, token string) *Rendered {
	email := sub.Email()

	data := make(map[string]string, len(sub)+3)
	for k, v := range sub {
		data[k] = v
	}
	data["confirmation_token"] = token
	data["email"] = email

	urlData := make(map[string]string, len(data))
	for k, v := range data {
		urlData[k] = v
	}
	urlData["email"] = url.QueryEscape(email)
	confirmURL := Render(t.ConfirmationURL, urlData)

	data["confirmation_url"] = confirmURL

	out := &Rendered{
		Subject:         Render(t.Subject, data),
		ConfirmationURL: confirmURL,
	}
	if t.Text != "" {
		out.Text = Render(t.Text, data)
	}
	if t.HTML != "" {
		out.HTML = Render(t.HTML, data)
	}
	return out
}

// ExtractVariables returns the unique placeholder names in s, in order of
// first appearance.
func ExtractVariables(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Variables returns the unique placeholder names used anywhere in the
// template, in order of first appearance across subject, text, html, and
// the confirmation URL.
func (t *Template) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, part := range []string{t.Subject, t.Text, t.HTML, t.ConfirmationURL} {
		for _, v := range ExtractVariables(part) {
			if !seen[v] {
				seen[v] = true
				names = append(names, v)
			}
		}
	}
	return names
}

// PreflightFor checks whether a subscriber record supplies every variable
// the template uses. The system-injected variables confirmation_token and
// confirmation_url are never required of the record; email always is.
func (t *Template) PreflightFor(sub subscriber.Subscriber) *Preflight {
	required := []string{"email"}
	for _, v := range t.Variables() {
		switch v {
		case "confirmation_token", "confirmation_url", "email":
			continue
		}
		required = append(required, v)
	}

	available := make([]string, 0, len(sub))
	for k := range sub {
		available = append(available, k)
	}
	sort.Strings(available)

	var missing []string
	for _, v := range required {
		if sub.Field(v) == "" {
			missing = append(missing, v)
		}
	}

	return &Preflight{
		Valid:     len(missing) == 0,
		Missing:   missing,
		Available: available,
		Required:  required,
	}
}
