// Package vk is the VK community channel adapter: message sending and
// profile lookup over the VK REST API. Inbound traffic arrives through
// the Callback API webhook handled by the delivery layer.
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
)

const (
	defaultBaseURL    = "https://api.vk.com/method"
	defaultAPIVersion = "5.199"
)

// Sender sends VK community messages. Recipient ids are numeric peer ids
// as decimal strings.
type Sender struct {
	baseURL     string
	accessToken string
	apiVersion  string
	inboxID     int
	client      *http.Client
}

// New creates a VK sender. baseURL and apiVersion may be empty for the
// defaults.
func New(baseURL, accessToken, apiVersion string, inboxID int) *Sender {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Sender{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		apiVersion:  apiVersion,
		inboxID:     inboxID,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Channel returns the channel tag.
func (s *Sender) Channel() string { return domain.ChannelVK }

// InboxID returns the bound helpdesk inbox.
func (s *Sender) InboxID() int { return s.inboxID }

// SendText delivers a text message to a peer.
func (s *Sender) SendText(ctx context.Context, recipientID string, text domain.Text, _ domain.SendOptions) error {
	params := url.Values{}
	params.Set("peer_id", recipientID)
	params.Set("message", text.Body)
	params.Set("random_id", fmt.Sprintf("%d", rand.Int63()))
	_, err := s.call(ctx, "messages.send", params)
	return err
}

// SendMedia delivers media as a link message. VK previews the URL; a full
// attachment upload needs the multi-step photos/docs upload flow, which
// community messages do not require for the bridge's use.
func (s *Sender) SendMedia(ctx context.Context, recipientID string, media domain.Media) error {
	body := media.URL
	if media.Caption != "" {
		body = media.Caption + "\n" + media.URL
	}
	return s.SendText(ctx, recipientID, domain.Text{Body: body}, domain.SendOptions{})
}

// call invokes a VK API method and returns the raw "response" value.
// VK reports failures in-band as an error object with HTTP 200.
func (s *Sender) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	params.Set("access_token", s.accessToken)
	params.Set("v", s.apiVersion)

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vk API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
		Error    *struct {
			Code    int    `json:"error_code"`
			Message string `json:"error_msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("vk %s failed (code %d): %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	return envelope.Response, nil
}
