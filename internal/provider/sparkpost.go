package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ignite/optin-mailer/internal/config"
	"github.com/ignite/optin-mailer/internal/pkg/httpretry"
)

// SparkPost sends through the SparkPost transmissions API.
type SparkPost struct {
	apiKey  string
	baseURL string
	client  httpretry.Doer
}

// NewSparkPost creates a SparkPost sender. Transient API failures are
// retried before a send is reported as failed.
func NewSparkPost(cfg config.SparkPostConfig) *SparkPost {
	return &SparkPost{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  httpretry.New(&http.Client{Timeout: cfg.Timeout()}, 3),
	}
}

// Send submits a single-recipient transmission.
func (sp *SparkPost) Send(ctx context.Context, msg *Message) (string, error) {
	content := map[string]interface{}{
		"from": map[string]string{
			"email": msg.From,
			"name":  msg.FromName,
		},
		"subject": msg.Subject,
	}
	if msg.Text != "" {
		content["text"] = msg.Text
	}
	if msg.HTML != "" {
		content["html"] = msg.HTML
	}
	if len(msg.Headers) > 0 {
		content["headers"] = msg.Headers
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.To}},
		},
		"content": content,
		"options": map[string]interface{}{
			"open_tracking":  false,
			"click_tracking": false,
		},
	}

	body, err := json.Marshal(transmission)
	if err != nil {
		return "", fmt.Errorf("marshal transmission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", sp.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sp.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("SparkPost API error: %w", err)
	}
	defer resp.Body.Close()

	var spResp struct {
		Results struct {
			TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
			ID                      string `json:"id"`
		} `json:"results"`
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&spResp); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode SparkPost response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || len(spResp.Errors) > 0 {
		errMsg := fmt.Sprintf("SparkPost returned status %d", resp.StatusCode)
		if len(spResp.Errors) > 0 {
			errMsg = spResp.Errors[0].Message
		}
		return "", fmt.Errorf("%s", errMsg)
	}

	return spResp.Results.ID, nil
}
