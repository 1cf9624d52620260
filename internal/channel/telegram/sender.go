// Package telegram is the personal-account Telegram channel adapter. The
// MTProto session itself lives in a companion bridge process; this
// adapter is a thin client for that bridge's HTTP API. Recipient ids are
// usernames, phone numbers, or "id:<n>" numeric references.
package telegram

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

// Sender sends Telegram messages through the bridge process.
type Sender struct {
	baseURL string
	token   string
	inboxID int
	client  *http.Client
}

// New creates a Telegram sender talking to the bridge at baseURL.
func New(baseURL, token string, inboxID int) *Sender {
	return &Sender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		inboxID: inboxID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Channel returns the channel tag.
func (s *Sender) Channel() string { return domain.ChannelTelegram }

// InboxID returns the bound helpdesk inbox.
func (s *Sender) InboxID() int { return s.inboxID }

// SendText delivers a text message. opts.AccessHash lets the bridge
// address users who never messaged the account; opts.SuppressEcho stops
// the bridge from reporting the send back as an outbound event.
func (s *Sender) SendText(ctx context.Context, recipientID string, text domain.Text, opts domain.SendOptions) error {
	body := map[string]any{
		"recipient_id":  recipientID,
		"text":          text.Body,
		"suppress_echo": opts.SuppressEcho,
	}
	if opts.AccessHash != nil {
		body["access_hash"] = *opts.AccessHash
	}
	return s.post(ctx, "/messages/text", body)
}

// SendMedia delivers a media message by URL. Audio is sent as a voice
// note when the bridge recognizes the format.
func (s *Sender) SendMedia(ctx context.Context, recipientID string, media domain.Media) error {
	body := map[string]any{
		"recipient_id": recipientID,
		"url":          media.URL,
		"media_type":   string(media.Type),
	}
	if media.Caption != "" {
		body["caption"] = media.Caption
	}
	if media.Filename != "" {
		body["filename"] = media.Filename
	}
	if media.MimeType != "" {
		body["mime_type"] = media.MimeType
	}
	return s.post(ctx, "/messages/media", body)
}

// SetTyping toggles the typing presence signal for a recipient.
func (s *Sender) SetTyping(ctx context.Context, recipientID string, typing bool, accessHash *int64) error {
	body := map[string]any{
		"recipient_id": recipientID,
		"typing":       typing,
	}
	if accessHash != nil {
		body["access_hash"] = *accessHash
	}
	return s.post(ctx, "/typing", body)
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
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram bridge error (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
