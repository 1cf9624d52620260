package routing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
)

type sentText struct {
	recipientID string
	text        string
	opts        domain.SendOptions
}

type sentMedia struct {
	recipientID string
	media       domain.Media
}

type fakeSender struct {
	channel string
	inboxID int

	texts  []sentText
	medias []sentMedia
	typing []string

	textErr   error
	mediaErr  error
	typingErr error
}

func (f *fakeSender) Channel() string { return f.channel }
func (f *fakeSender) InboxID() int    { return f.inboxID }

func (f *fakeSender) SendText(_ context.Context, recipientID string, text domain.Text, opts domain.SendOptions) error {
	if f.textErr != nil {
		return f.textErr
	}
	f.texts = append(f.texts, sentText{recipientID: recipientID, text: text.Body, opts: opts})
	return nil
}

func (f *fakeSender) SendMedia(_ context.Context, recipientID string, media domain.Media) error {
	if f.mediaErr != nil {
		return f.mediaErr
	}
	f.medias = append(f.medias, sentMedia{recipientID: recipientID, media: media})
	return nil
}

func (f *fakeSender) SetTyping(_ context.Context, recipientID string, typing bool, _ *int64) error {
	if f.typingErr != nil {
		return f.typingErr
	}
	if typing {
		f.typing = append(f.typing, recipientID)
	}
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent", "json")
}

func outgoingPayload(channel string, sender map[string]any, content string) map[string]any {
	return map[string]any{
		"event":        "message_created",
		"message_type": "outgoing",
		"private":      false,
		"content":      content,
		"conversation": map[string]any{
			"meta": map[string]any{
				"channel": channel,
				"sender":  sender,
			},
		},
	}
}

func TestHandleOutgoingFiltersIncoming(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}, "hi")
	p["message_type"] = "incoming"

	r.HandleOutgoing(context.Background(), p)

	assert.Empty(t, tg.texts)
	assert.Empty(t, tg.medias)
}

func TestHandleOutgoingFiltersPrivateAndOtherEvents(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())
	sender := map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}

	private := outgoingPayload(domain.ChannelTelegram, sender, "hi")
	private["private"] = true
	r.HandleOutgoing(context.Background(), private)

	updated := outgoingPayload(domain.ChannelTelegram, sender, "hi")
	updated["event"] = "message_updated"
	r.HandleOutgoing(context.Background(), updated)

	assert.Empty(t, tg.texts)
}

func TestHandleOutgoingVKDispatchesTextOnly(t *testing.T) {
	vk := &fakeSender{channel: domain.ChannelVK}
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{
		domain.ChannelVK:       vk,
		domain.ChannelTelegram: tg,
	}, "", nil, testLogger())

	p := outgoingPayload(domain.ChannelVK, map[string]any{
		"custom_attributes": map[string]any{"vk_peer_id": "123"},
	}, "hello")
	r.HandleOutgoing(context.Background(), p)

	require.Len(t, vk.texts, 1)
	assert.Equal(t, "123", vk.texts[0].recipientID)
	assert.Equal(t, "hello", vk.texts[0].text)
	assert.True(t, vk.texts[0].opts.SuppressEcho)
	assert.Empty(t, vk.medias)
	assert.Empty(t, tg.texts)
}

func TestHandleOutgoingMissingChannelDrops(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	p := outgoingPayload("", map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}, "hi")
	r.HandleOutgoing(context.Background(), p)

	assert.Empty(t, tg.texts)
}

func TestHandleOutgoingMissingContentDrops(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}, "   ")
	r.HandleOutgoing(context.Background(), p)

	assert.Empty(t, tg.texts)
}

func TestHandleOutgoingTelegramAudioAttachment(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "https://cw.example.com/", nil, testLogger())

	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}, "listen to this")
	p["attachments"] = []any{
		map[string]any{
			"file_type": "image",
			"data_url":  "https://cw.example.com/img.png",
		},
		map[string]any{
			"file_type":    "audio",
			"data_url":     "/rails/active_storage/blobs/voice.ogg",
			"filename":     "voice.ogg",
			"content_type": "audio/ogg",
		},
	}
	r.HandleOutgoing(context.Background(), p)

	require.Len(t, tg.texts, 1)
	assert.Equal(t, "listen to this", tg.texts[0].text)
	require.Len(t, tg.medias, 1)
	media := tg.medias[0].media
	assert.Equal(t, domain.MediaAudio, media.Type)
	assert.Equal(t, "https://cw.example.com/rails/active_storage/blobs/voice.ogg", media.URL)
	assert.Equal(t, "voice.ogg", media.Filename)
	assert.Equal(t, "audio/ogg", media.MimeType)
}

func TestHandleOutgoingAudioByExtension(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}, "")
	p["content_attributes"] = map[string]any{
		"attachments": []any{
			map[string]any{
				"file_type": "file",
				"extension": ".m4a",
				"file_url":  "https://cdn.example.com/note.m4a",
			},
		},
	}
	r.HandleOutgoing(context.Background(), p)

	assert.Empty(t, tg.texts)
	require.Len(t, tg.medias, 1)
	assert.Equal(t, "https://cdn.example.com/note.m4a", tg.medias[0].media.URL)
}

func TestHandleOutgoingAudioIgnoredOffTelegram(t *testing.T) {
	vk := &fakeSender{channel: domain.ChannelVK}
	r := New(map[string]domain.Sender{domain.ChannelVK: vk}, "", nil, testLogger())

	p := outgoingPayload(domain.ChannelVK, map[string]any{
		"custom_attributes": map[string]any{"vk_peer_id": "9"},
	}, "hello")
	p["attachments"] = []any{
		map[string]any{"file_type": "audio", "data_url": "https://cdn/x.ogg"},
	}
	r.HandleOutgoing(context.Background(), p)

	require.Len(t, vk.texts, 1)
	assert.Empty(t, vk.medias)
}

func TestHandleOutgoingTextFailureDoesNotBlockMedia(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram, textErr: errors.New("flood wait")}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes": map[string]any{"telegram_username": "alice"},
	}, "hi")
	p["attachments"] = []any{
		map[string]any{"file_type": "voice", "data_url": "https://cdn/v.oga"},
	}
	r.HandleOutgoing(context.Background(), p)

	assert.Empty(t, tg.texts)
	require.Len(t, tg.medias, 1)
}

func TestDeriveRecipientTelegramUsernamePriority(t *testing.T) {
	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes":     map[string]any{"telegram_username": "alice"},
		"additional_attributes": map[string]any{"social_telegram_user_name": "bob"},
	}, "hi")

	got, ok := DeriveRecipient(domain.ChannelTelegram, p)
	require.True(t, ok)
	assert.Equal(t, "alice", got)
}

func TestDeriveRecipientTelegramNumericFallback(t *testing.T) {
	// JSON numbers decode as float64; the id still renders as "id:42".
	p := outgoingPayload(domain.ChannelTelegram, map[string]any{
		"custom_attributes": map[string]any{"telegram_user_id": float64(42)},
	}, "hi")

	got, ok := DeriveRecipient(domain.ChannelTelegram, p)
	require.True(t, ok)
	assert.Equal(t, "id:42", got)
}

func TestDeriveRecipientChains(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		sender  map[string]any
		want    string
		wantOK  bool
	}{
		{
			name:    "whatsapp phone",
			channel: domain.ChannelWhatsApp,
			sender:  map[string]any{"phone_number": "+5511999999999"},
			want:    "+5511999999999",
			wantOK:  true,
		},
		{
			name:    "whatsapp without phone",
			channel: domain.ChannelWhatsApp,
			sender:  map[string]any{"custom_attributes": map[string]any{"telegram_username": "x"}},
			wantOK:  false,
		},
		{
			name:    "telegram social username",
			channel: domain.ChannelTelegram,
			sender: map[string]any{
				"additional_attributes": map[string]any{"social_telegram_user_name": "bob"},
			},
			want:   "bob",
			wantOK: true,
		},
		{
			name:    "telegram phone before ids",
			channel: domain.ChannelTelegram,
			sender: map[string]any{
				"phone_number":      "+79990001122",
				"custom_attributes": map[string]any{"telegram_user_id": float64(7)},
			},
			want:   "+79990001122",
			wantOK: true,
		},
		{
			name:    "telegram social id last",
			channel: domain.ChannelTelegram,
			sender: map[string]any{
				"additional_attributes": map[string]any{"social_telegram_user_id": float64(99)},
			},
			want:   "id:99",
			wantOK: true,
		},
		{
			name:    "vk peer before user",
			channel: domain.ChannelVK,
			sender: map[string]any{
				"custom_attributes": map[string]any{
					"vk_peer_id": "123",
					"vk_user_id": "456",
				},
			},
			want:   "123",
			wantOK: true,
		},
		{
			name:    "unknown channel never guesses",
			channel: "irc",
			sender:  map[string]any{"phone_number": "+111"},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := outgoingPayload(tt.channel, tt.sender, "hi")
			got, ok := DeriveRecipient(tt.channel, p)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatchDirectRejectsOtherChannels(t *testing.T) {
	vk := &fakeSender{channel: domain.ChannelVK}
	r := New(map[string]domain.Sender{domain.ChannelVK: vk}, "", nil, testLogger())

	err := r.DispatchDirect(context.Background(), domain.ChannelVK, "123", "hi", 0, nil)
	require.Error(t, err)
	assert.Empty(t, vk.texts)
}

func TestDispatchDirectUnconfigured(t *testing.T) {
	r := New(map[string]domain.Sender{}, "", nil, testLogger())

	err := r.DispatchDirect(context.Background(), domain.ChannelTelegram, "alice", "hi", 0, nil)
	require.Error(t, err)
}

func TestDispatchDirectSendsAndReEmits(t *testing.T) {
	log := testLogger()
	b := bus.New(8, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	emitted := make(chan map[string]any, 1)
	b.Subscribe(domain.TopicTelegramOutgoing, "capture", func(_ context.Context, evt bus.Event) {
		emitted <- evt.Payload
	})

	tg := &fakeSender{channel: domain.ChannelTelegram}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", b, log)

	err := r.DispatchDirect(ctx, domain.ChannelTelegram, "id:42", "ping", 0, nil)
	require.NoError(t, err)

	require.Len(t, tg.texts, 1)
	assert.Equal(t, "id:42", tg.texts[0].recipientID)
	assert.False(t, tg.texts[0].opts.SuppressEcho)

	select {
	case p := <-emitted:
		assert.Equal(t, "42", p["to_id"])
		assert.Equal(t, "ping", p["text"])
	case <-time.After(2 * time.Second):
		t.Fatal("telegram outgoing event was not re-emitted")
	}
}

func TestDispatchDirectTypingFailureIgnored(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram, typingErr: errors.New("offline")}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	err := r.DispatchDirect(context.Background(), domain.ChannelTelegram, "alice", "hi", time.Millisecond, nil)
	require.NoError(t, err)
	require.Len(t, tg.texts, 1)
}

func TestDispatchDirectSendFailurePropagates(t *testing.T) {
	tg := &fakeSender{channel: domain.ChannelTelegram, textErr: errors.New("peer not found")}
	r := New(map[string]domain.Sender{domain.ChannelTelegram: tg}, "", nil, testLogger())

	err := r.DispatchDirect(context.Background(), domain.ChannelTelegram, "alice", "hi", 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer not found")
}
