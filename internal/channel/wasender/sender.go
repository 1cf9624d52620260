// Package wasender is the WhatsApp channel adapter, a thin client for the
// Wasender HTTP gateway. Inbound traffic arrives over the gateway's
// webhook (handled by the delivery layer); this package only sends.
package wasender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
)

const defaultBaseURL = "https://www.wasenderapi.com/api"

// Sender sends WhatsApp messages through the Wasender API.
type Sender struct {
	baseURL string
	apiKey  string
	inboxID int
	client  *http.Client
}

// New creates a Wasender sender bound to a helpdesk inbox. baseURL may be
// empty to use the hosted service.
func New(baseURL, apiKey string, inboxID int) *Sender {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Sender{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		inboxID: inboxID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Channel returns the channel tag.
func (s *Sender) Channel() string { return domain.ChannelWhatsApp }

// InboxID returns the bound helpdesk inbox.
func (s *Sender) InboxID() int { return s.inboxID }

// SendText delivers a text message. recipientID is the bare msisdn.
func (s *Sender) SendText(ctx context.Context, recipientID string, text domain.Text, _ domain.SendOptions) error {
	body := map[string]any{
		"to":   recipientID,
		"text": text.Body,
	}
	return s.post(ctx, "/send-message", body)
}

// SendMedia delivers a media message by URL. The gateway downloads the
// file itself, so the URL must be reachable from outside.
func (s *Sender) SendMedia(ctx context.Context, recipientID string, media domain.Media) error {
	body := map[string]any{
		"to": recipientID,
	}
	if media.Caption != "" {
		body["text"] = media.Caption
	}
	switch media.Type {
	case domain.MediaImage:
		body["imageUrl"] = media.URL
	case domain.MediaVideo:
		body["videoUrl"] = media.URL
	case domain.MediaAudio:
		body["audioUrl"] = media.URL
	default:
		body["documentUrl"] = media.URL
	}
	return s.post(ctx, "/send-message", body)
}

func (s *Sender) post(ctx context.Context, path string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("wasender API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
