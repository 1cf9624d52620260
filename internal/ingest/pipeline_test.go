package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/channel/vk"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/reconcile"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/routing"
)

type createdMessage struct {
	conversationID int
	content        string
	messageType    chatwoot.MessageType
	filePath       string
}

// helpdeskFake is an in-memory reconcile.Store recording all writes.
type helpdeskFake struct {
	contacts      []chatwoot.Contact
	conversations []chatwoot.Conversation
	created       []chatwoot.NewContact
	convCreated   []chatwoot.NewConversation
	messages      []createdMessage
	searchCalls   []string
	nextContactID int
	nextConvID    int
}

func newHelpdeskFake() *helpdeskFake {
	return &helpdeskFake{nextContactID: 100, nextConvID: 500}
}

func (h *helpdeskFake) SearchContacts(_ context.Context, q string) ([]chatwoot.Contact, error) {
	h.searchCalls = append(h.searchCalls, q)
	return nil, nil
}

func (h *helpdeskFake) FilterContacts(_ context.Context, attrs map[string]any) ([]chatwoot.Contact, error) {
	for _, c := range h.contacts {
		for k, v := range attrs {
			if c.CustomAttributes[k] == v {
				return []chatwoot.Contact{c}, nil
			}
		}
	}
	return nil, nil
}

func (h *helpdeskFake) CreateContact(_ context.Context, nc chatwoot.NewContact) (chatwoot.Contact, error) {
	h.created = append(h.created, nc)
	h.nextContactID++
	c := chatwoot.Contact{
		ID:               h.nextContactID,
		Name:             nc.Name,
		PhoneNumber:      nc.PhoneNumber,
		Identifier:       nc.Identifier,
		CustomAttributes: nc.CustomAttributes,
		ContactInboxes: []chatwoot.ContactInbox{
			{SourceID: "src-" + nc.Name, Inbox: chatwoot.Inbox{ID: nc.InboxID}},
		},
	}
	h.contacts = append(h.contacts, c)
	return c, nil
}

func (h *helpdeskFake) UpdateContact(_ context.Context, contactID int, patch chatwoot.ContactPatch) (chatwoot.Contact, error) {
	for i, c := range h.contacts {
		if c.ID == contactID {
			if patch.Name != "" {
				h.contacts[i].Name = patch.Name
			}
			return h.contacts[i], nil
		}
	}
	return chatwoot.Contact{}, errors.New("contact not found")
}

func (h *helpdeskFake) ListConversations(_ context.Context, _ int) ([]chatwoot.Conversation, error) {
	return h.conversations, nil
}

func (h *helpdeskFake) CreateConversation(_ context.Context, nc chatwoot.NewConversation) (chatwoot.Conversation, error) {
	h.convCreated = append(h.convCreated, nc)
	h.nextConvID++
	return chatwoot.Conversation{ID: h.nextConvID, Status: chatwoot.StatusOpen, InboxID: nc.InboxID}, nil
}

func (h *helpdeskFake) CreateMessage(_ context.Context, conversationID int, content string, messageType chatwoot.MessageType) (int, error) {
	h.messages = append(h.messages, createdMessage{conversationID: conversationID, content: content, messageType: messageType})
	return len(h.messages), nil
}

func (h *helpdeskFake) CreateMessageWithAttachment(_ context.Context, conversationID int, content, filePath, _ string, messageType chatwoot.MessageType) (int, error) {
	h.messages = append(h.messages, createdMessage{conversationID: conversationID, content: content, messageType: messageType, filePath: filePath})
	return len(h.messages), nil
}

type profileFake struct {
	profile vk.Profile
	err     error
	calls   []string
}

func (p *profileFake) FetchProfile(_ context.Context, userID string) (vk.Profile, error) {
	p.calls = append(p.calls, userID)
	return p.profile, p.err
}

type journalFake struct {
	reasons []string
}

func (j *journalFake) RecordFailure(_ context.Context, _, _, reason string, _ map[string]any) (string, error) {
	j.reasons = append(j.reasons, reason)
	return "id", nil
}

func newTestPipeline(h *helpdeskFake, inboxes map[string]int, profiles ProfileFetcher, journal FailureJournal) *Pipeline {
	log := logging.New(io.Discard, "silent", "json")
	svc := reconcile.NewService(h, log)
	router := routing.New(map[string]domain.Sender{}, "", nil, log)
	return New(svc, router, inboxes, profiles, journal, log)
}

func TestIngestWasenderEndToEnd(t *testing.T) {
	h := newHelpdeskFake()
	p := newTestPipeline(h, map[string]int{"whatsapp": 7}, nil, nil)

	err := p.ingestWasender(context.Background(), map[string]any{
		"event": "messages.upsert",
		"data": map[string]any{
			"messages": map[string]any{
				"key": map[string]any{
					"remoteJid": "5511999999999@s.whatsapp.net",
					"fromMe":    false,
				},
				"pushName": "Maria",
				"message":  map[string]any{"conversation": "hi"},
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, h.created, 1)
	assert.Equal(t, "5511999999999", h.created[0].PhoneNumber)
	assert.Equal(t, "Maria", h.created[0].Name)
	assert.Equal(t, "5511999999999@s.whatsapp.net", h.created[0].CustomAttributes["wa_remote_jid"])

	require.Len(t, h.convCreated, 1)
	assert.Equal(t, 7, h.convCreated[0].InboxID)
	assert.Equal(t, "5511999999999", h.convCreated[0].SourceID)

	require.Len(t, h.messages, 1)
	assert.Equal(t, "hi", h.messages[0].content)
	assert.Equal(t, chatwoot.MessageIncoming, h.messages[0].messageType)
}

func TestIngestWasenderExtendedText(t *testing.T) {
	h := newHelpdeskFake()
	p := newTestPipeline(h, map[string]int{"whatsapp": 7}, nil, nil)

	err := p.ingestWasender(context.Background(), map[string]any{
		"data": map[string]any{
			"messages": map[string]any{
				"key":     map[string]any{"participant": "5511888888888@s.whatsapp.net"},
				"message": map[string]any{"extendedTextMessage": map[string]any{"text": "quoted reply"}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, h.messages, 1)
	assert.Equal(t, "quoted reply", h.messages[0].content)
	// No push name: the msisdn doubles as contact name.
	assert.Equal(t, "5511888888888", h.created[0].Name)
}

func TestIngestWasenderMissingInboxIsHardError(t *testing.T) {
	h := newHelpdeskFake()
	p := newTestPipeline(h, map[string]int{}, nil, nil)

	err := p.ingestWasender(context.Background(), map[string]any{
		"data": map[string]any{
			"messages": map[string]any{
				"key":     map[string]any{"remoteJid": "5511999999999@s.whatsapp.net"},
				"message": map[string]any{"conversation": "hi"},
			},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inbox")
	assert.Empty(t, h.created)
}

func TestIngestTelegramIncoming(t *testing.T) {
	h := newHelpdeskFake()
	p := newTestPipeline(h, map[string]int{"telegram": 3}, nil, nil)

	err := p.ingestTelegram(context.Background(), map[string]any{
		"text":     "hello",
		"from_id":  float64(42),
		"username": "alice",
		"name":     "Alice",
	}, "from_id", chatwoot.MessageIncoming)
	require.NoError(t, err)

	require.Len(t, h.created, 1)
	assert.Equal(t, "Alice", h.created[0].Name)
	assert.Equal(t, "42", h.created[0].CustomAttributes["telegram_user_id"])
	assert.Equal(t, "alice", h.created[0].CustomAttributes["telegram_username"])

	require.Len(t, h.messages, 1)
	assert.Equal(t, chatwoot.MessageIncoming, h.messages[0].messageType)
}

func TestIngestTelegramOutgoingWithAttachment(t *testing.T) {
	h := newHelpdeskFake()
	p := newTestPipeline(h, map[string]int{"telegram": 3}, nil, nil)

	tmp := filepath.Join(t.TempDir(), "voice.ogg")
	require.NoError(t, os.WriteFile(tmp, []byte("opus"), 0o600))

	err := p.ingestTelegram(context.Background(), map[string]any{
		"text":                    "",
		"to_id":                   "42",
		"attachment_path":         tmp,
		"attachment_content_type": "audio/ogg",
	}, "to_id", chatwoot.MessageOutgoing)
	require.NoError(t, err)

	require.Len(t, h.messages, 1)
	assert.Equal(t, tmp, h.messages[0].filePath)
	assert.Equal(t, chatwoot.MessageOutgoing, h.messages[0].messageType)

	// Temp file is removed after ingestion.
	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestTelegramMissingUserReference(t *testing.T) {
	h := newHelpdeskFake()
	p := newTestPipeline(h, map[string]int{"telegram": 3}, nil, nil)

	err := p.ingestTelegram(context.Background(), map[string]any{"text": "hi"}, "from_id", chatwoot.MessageIncoming)
	require.Error(t, err)
	assert.Empty(t, h.created)
}

func TestIngestVKWithProfileEnrichment(t *testing.T) {
	h := newHelpdeskFake()
	profiles := &profileFake{profile: vk.Profile{
		FirstName: "Ivan", LastName: "Petrov", Bdate: "12.3.1990", City: "Moscow",
	}}
	p := newTestPipeline(h, map[string]int{"vk": 4}, profiles, nil)

	err := p.ingestVK(context.Background(), map[string]any{
		"event": "message_new",
		"message": map[string]any{
			"text":    "privet",
			"peer_id": float64(123),
			"from_id": float64(123),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"123"}, profiles.calls)
	require.Len(t, h.created, 1)
	nc := h.created[0]
	assert.Equal(t, "Ivan Petrov", nc.Name)
	assert.Equal(t, "123", nc.CustomAttributes["vk_user_id"])
	assert.Equal(t, "123", nc.CustomAttributes["vk_peer_id"])
	assert.Equal(t, "12.3.1990", nc.CustomAttributes["vk_bdate"])
	assert.Equal(t, "Moscow", nc.AdditionalAttributes["city"])

	require.Len(t, h.messages, 1)
	assert.Equal(t, "privet", h.messages[0].content)
}

func TestIngestVKProfileFailureTolerated(t *testing.T) {
	h := newHelpdeskFake()
	profiles := &profileFake{err: errors.New("users.get timed out")}
	p := newTestPipeline(h, map[string]int{"vk": 4}, profiles, nil)

	err := p.ingestVK(context.Background(), map[string]any{
		"message": map[string]any{"text": "privet", "peer_id": float64(123)},
	})
	require.NoError(t, err)

	require.Len(t, h.created, 1)
	// Without a profile the user id doubles as the name.
	assert.Equal(t, "123", h.created[0].Name)
	assert.NotContains(t, h.created[0].CustomAttributes, "vk_bdate")
}

func TestRegisterRoutesFailuresToJournal(t *testing.T) {
	h := newHelpdeskFake()
	journal := &journalFake{}
	p := newTestPipeline(h, map[string]int{}, nil, journal)

	log := logging.New(io.Discard, "silent", "json")
	b := bus.New(8, log)
	p.Register(b)

	// Dispatch runs handlers synchronously; a vk event with no inbox
	// configured lands in the journal instead of crashing anything.
	b.Dispatch(context.Background(), domain.TopicVKIncoming, map[string]any{
		"message": map[string]any{"text": "hi", "peer_id": float64(1)},
	})

	require.Len(t, journal.reasons, 1)
	assert.Contains(t, journal.reasons[0], "inbox")
	assert.Empty(t, h.messages)
}
