// Package chatwoot is a client for the Chatwoot API v1, covering the
// contact, conversation, and message endpoints the gateway needs.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to one Chatwoot account.
type Client struct {
	baseURL     string
	accountBase string
	token       string
	http        *http.Client
}

// New creates a client for the given instance and account.
func New(baseURL string, accountID int, apiAccessToken string) *Client {
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:     base,
		accountBase: fmt.Sprintf("%s/api/v1/accounts/%d", base, accountID),
		token:       apiAccessToken,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// BaseURL returns the instance base URL, used to rebase relative
// attachment URLs from webhook payloads.
func (c *Client) BaseURL() string { return c.baseURL }

// SearchContacts searches contacts by name, identifier, email, or phone.
func (c *Client) SearchContacts(ctx context.Context, q string) ([]Contact, error) {
	endpoint := c.accountBase + "/contacts/search?q=" + url.QueryEscape(q)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeContacts(body)
}

// FilterContacts filters contacts by attribute equality. Keys are the raw
// attribute keys (e.g. "vk_user_id").
func (c *Client) FilterContacts(ctx context.Context, attrs map[string]any) ([]Contact, error) {
	type filter struct {
		AttributeKey   string   `json:"attribute_key"`
		FilterOperator string   `json:"filter_operator"`
		Values         []string `json:"values"`
	}
	filters := make([]filter, 0, len(attrs))
	for key, value := range attrs {
		filters = append(filters, filter{
			AttributeKey:   key,
			FilterOperator: "equal_to",
			Values:         []string{fmt.Sprint(value)},
		})
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.accountBase+"/contacts/filter",
		map[string]any{"payload": filters})
	if err != nil {
		return nil, err
	}
	return decodeContacts(body)
}

// CreateContact creates a contact bound to an inbox.
func (c *Client) CreateContact(ctx context.Context, nc NewContact) (Contact, error) {
	payload := map[string]any{"inbox_id": nc.InboxID}
	if nc.Name != "" {
		payload["name"] = nc.Name
	}
	if nc.PhoneNumber != "" {
		payload["phone_number"] = normalizePhone(nc.PhoneNumber)
	}
	if nc.Email != "" {
		payload["email"] = nc.Email
	}
	if nc.Identifier != "" {
		payload["identifier"] = nc.Identifier
	}
	if len(nc.CustomAttributes) > 0 {
		payload["custom_attributes"] = nc.CustomAttributes
	}
	if len(nc.AdditionalAttributes) > 0 {
		payload["additional_attributes"] = nc.AdditionalAttributes
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.accountBase+"/contacts", payload)
	if err != nil {
		return Contact{}, err
	}
	return decodeCreatedContact(body)
}

// UpdateContact patches contact fields and attribute maps.
func (c *Client) UpdateContact(ctx context.Context, contactID int, patch ContactPatch) (Contact, error) {
	payload := map[string]any{}
	if patch.Name != "" {
		payload["name"] = patch.Name
	}
	if patch.Identifier != "" {
		payload["identifier"] = patch.Identifier
	}
	if patch.CustomAttributes != nil {
		payload["custom_attributes"] = patch.CustomAttributes
	}
	if patch.AdditionalAttributes != nil {
		payload["additional_attributes"] = patch.AdditionalAttributes
	}

	endpoint := fmt.Sprintf("%s/contacts/%d", c.accountBase, contactID)
	body, err := c.doJSON(ctx, http.MethodPatch, endpoint, payload)
	if err != nil {
		return Contact{}, err
	}
	return decodeCreatedContact(body)
}

// ListConversations lists a contact's conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context, contactID int) ([]Conversation, error) {
	endpoint := fmt.Sprintf("%s/contacts/%d/conversations", c.accountBase, contactID)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var env conversationsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding conversations: %w", err)
	}
	return env.Payload, nil
}

// CreateConversation creates a conversation bound to a source identifier.
func (c *Client) CreateConversation(ctx context.Context, nc NewConversation) (Conversation, error) {
	payload := map[string]any{
		"inbox_id":  nc.InboxID,
		"source_id": nc.SourceID,
	}
	if nc.ContactID != 0 {
		payload["contact_id"] = nc.ContactID
	}
	if len(nc.CustomAttributes) > 0 {
		payload["custom_attributes"] = nc.CustomAttributes
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.accountBase+"/conversations", payload)
	if err != nil {
		return Conversation{}, err
	}

	var env createdConversationEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Conversation{}, fmt.Errorf("decoding created conversation: %w", err)
	}
	conv := Conversation{ID: env.ID}
	if conv.ID == 0 && env.Payload != nil {
		if env.Payload.Conversation != nil && env.Payload.Conversation.ID != 0 {
			conv = *env.Payload.Conversation
		} else {
			conv.ID = env.Payload.ID
		}
	}
	if conv.ID == 0 {
		return Conversation{}, fmt.Errorf("conversation create response carried no id")
	}
	return conv, nil
}

// CreateMessage posts a message to a conversation.
func (c *Client) CreateMessage(ctx context.Context, conversationID int, content string, messageType MessageType) (int, error) {
	endpoint := fmt.Sprintf("%s/conversations/%d/messages", c.accountBase, conversationID)
	body, err := c.doJSON(ctx, http.MethodPost, endpoint, map[string]any{
		"content":      content,
		"message_type": string(messageType),
	})
	if err != nil {
		return 0, err
	}
	return decodeMessageID(body)
}

// CreateMessageWithAttachment posts a message with a file attachment as
// multipart form data.
func (c *Client) CreateMessageWithAttachment(ctx context.Context, conversationID int, content, filePath, contentType string, messageType MessageType) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("opening attachment: %w", err)
	}
	defer f.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("content", content); err != nil {
		return 0, fmt.Errorf("building multipart body: %w", err)
	}
	if err := w.WriteField("message_type", string(messageType)); err != nil {
		return 0, fmt.Errorf("building multipart body: %w", err)
	}

	part, err := w.CreateFormFile("attachments[]", filepath.Base(filePath))
	if err != nil {
		return 0, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, fmt.Errorf("reading attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("building multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/conversations/%d/messages", c.accountBase, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	body, err := c.send(req)
	if err != nil {
		return 0, err
	}
	return decodeMessageID(body)
}

// do performs a request with an optional JSON body and returns the
// response body.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	return c.send(req)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, method, endpoint, bytes.NewReader(data))
}

func (c *Client) setAuth(req *http.Request) {
	// Both header forms for compatibility across Chatwoot versions.
	req.Header.Set("api_access_token", c.token)
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chatwoot API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// decodeContacts handles both list envelope shapes the API returns.
func decodeContacts(body []byte) ([]Contact, error) {
	var env contactsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding contacts: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, nil
	}

	var list []Contact
	if err := json.Unmarshal(env.Payload, &list); err == nil {
		return list, nil
	}

	var nested struct {
		Contacts []Contact `json:"contacts"`
		Payload  []Contact `json:"payload"`
	}
	if err := json.Unmarshal(env.Payload, &nested); err != nil {
		return nil, fmt.Errorf("decoding contacts: %w", err)
	}
	if len(nested.Contacts) > 0 {
		return nested.Contacts, nil
	}
	return nested.Payload, nil
}

func decodeCreatedContact(body []byte) (Contact, error) {
	var env createdContactEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Contact{}, fmt.Errorf("decoding contact: %w", err)
	}
	if env.Payload != nil && env.Payload.Contact != nil {
		return *env.Payload.Contact, nil
	}
	if env.Contact != nil {
		return *env.Contact, nil
	}
	if env.ID != 0 {
		var direct Contact
		if err := json.Unmarshal(body, &direct); err != nil {
			return Contact{}, fmt.Errorf("decoding contact: %w", err)
		}
		return direct, nil
	}
	return Contact{}, fmt.Errorf("contact response carried no id")
}

func decodeMessageID(body []byte) (int, error) {
	var env messageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("decoding message: %w", err)
	}
	if env.ID != 0 {
		return env.ID, nil
	}
	if env.Payload != nil && env.Payload.ID != 0 {
		return env.Payload.ID, nil
	}
	return 0, fmt.Errorf("message response carried no id")
}

func normalizePhone(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}
