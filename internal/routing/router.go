// Package routing dispatches helpdesk-originated messages back to the
// channel adapters. The router never reads recipient ids from the
// helpdesk event directly: it derives them from contact attributes per
// channel (see DeriveRecipient).
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
)

// Direct dispatch failures the caller can act on.
var (
	ErrUnsupportedChannel   = errors.New("direct dispatch supports only the telegram channel")
	ErrChannelNotConfigured = errors.New("telegram channel is not configured")
)

// messageCreated is the subset of the helpdesk "message created" webhook
// the router filters on. Everything else is read from the raw payload.
type messageCreated struct {
	Event       string `json:"event"`
	MessageType string `json:"message_type"`
	Private     bool   `json:"private"`
	Content     string `json:"content"`
}

// Router fans helpdesk outbound messages out to channel senders. Senders
// are an injected read-only map built at startup; the router never
// mutates it.
type Router struct {
	senders      map[string]domain.Sender
	helpdeskBase string
	bus          *bus.Bus
	log          *logging.Logger
}

// New builds a router over the given channel senders. helpdeskBase is
// used to rebase relative attachment URLs; b may be nil when no direct
// dispatch re-emit is wanted (tests).
func New(senders map[string]domain.Sender, helpdeskBase string, b *bus.Bus, log *logging.Logger) *Router {
	return &Router{
		senders:      senders,
		helpdeskBase: strings.TrimRight(helpdeskBase, "/"),
		bus:          b,
		log:          log.Sub("router"),
	}
}

// HandleOutgoing processes a helpdesk message-created webhook payload and
// dispatches its content to the matching channel sender. Events that are
// not outbound public message creations are filtered, not errors. All
// dispatch failures are logged and swallowed; text and media dispatch are
// independent.
func (r *Router) HandleOutgoing(ctx context.Context, p map[string]any) {
	var msg messageCreated
	raw, err := json.Marshal(p)
	if err == nil {
		err = json.Unmarshal(raw, &msg)
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("invalid helpdesk payload")
		return
	}

	if msg.Event != "message_created" {
		r.log.Info().Str("event", msg.Event).Msg("ignored helpdesk event")
		return
	}
	if msg.Private {
		r.log.Info().Msg("ignored private message")
		return
	}
	if msg.MessageType != "outgoing" {
		r.log.Info().Str("message_type", msg.MessageType).Msg("ignored message type")
		return
	}

	// The delivery layer injects the channel tag into conversation meta;
	// the helpdesk itself never carries it.
	channel, _ := payload.Text(p, "conversation", "meta", "channel")
	recipientID, _ := DeriveRecipient(channel, p)
	if channel == "" || recipientID == "" {
		r.log.Warn().
			Str("channel", channel).
			Str("recipient_id", recipientID).
			Msg("missing channel or recipient")
		return
	}

	text := strings.TrimSpace(msg.Content)
	attachments := extractAttachments(p)
	if text == "" && len(attachments) == 0 {
		r.log.Warn().
			Str("channel", channel).
			Str("recipient_id", recipientID).
			Msg("missing content")
		return
	}

	if text != "" {
		r.dispatchText(ctx, channel, recipientID, text)
	}

	// First audio attachment goes out as media on telegram, with or
	// without accompanying text.
	if len(attachments) > 0 && channel == domain.ChannelTelegram {
		if media, ok := firstAudioAttachment(attachments, r.helpdeskBase); ok {
			r.dispatchMedia(ctx, channel, recipientID, media)
		} else if text == "" {
			r.log.Warn().
				Strs("file_types", attachmentFileTypes(attachments)).
				Msg("no text and no audio attachment")
		}
	}
}

// DispatchDirect sends text to a telegram recipient outside the helpdesk
// flow, optionally simulating typing first. Unlike HandleOutgoing this
// path is synchronous and user-facing: failures propagate to the caller.
// The echo is deliberately not suppressed so the adapter's outbound event
// still creates the message in the helpdesk.
func (r *Router) DispatchDirect(ctx context.Context, channel, recipientID, text string, typingDelay time.Duration, accessHash *int64) error {
	if channel != domain.ChannelTelegram {
		return fmt.Errorf("%w, got %q", ErrUnsupportedChannel, channel)
	}
	sender, ok := r.senders[channel]
	if !ok {
		return ErrChannelNotConfigured
	}

	if typingDelay > 0 {
		if ts, ok := sender.(domain.TypingSender); ok {
			if err := ts.SetTyping(ctx, recipientID, true, accessHash); err != nil {
				r.log.Warn().Err(err).Msg("set typing failed, ignored")
			} else {
				select {
				case <-time.After(typingDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}

	opts := domain.SendOptions{AccessHash: accessHash, SuppressEcho: false}
	if err := sender.SendText(ctx, recipientID, domain.Text{Body: text}, opts); err != nil {
		r.log.Error().Err(err).Str("recipient_id", recipientID).Msg("direct dispatch failed")
		return fmt.Errorf("send failed: %w", err)
	}
	r.log.Info().Str("recipient_id", recipientID).Msg("direct dispatch sent")

	// Re-emit so the ingestion path creates the helpdesk message even if
	// the adapter's own echo event never arrives. If both fire, the
	// message appears twice in the helpdesk thread.
	if r.bus != nil {
		toID := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(recipientID), "id:"))
		err := r.bus.Publish(ctx, domain.TopicTelegramOutgoing, map[string]any{
			"to_id": toID,
			"text":  text,
		})
		if err != nil {
			r.log.Warn().Err(err).Msg("re-emit of direct dispatch failed")
		}
	}
	return nil
}

func (r *Router) dispatchText(ctx context.Context, channel, recipientID, text string) {
	sender, ok := r.senders[channel]
	if !ok {
		r.log.Warn().Str("channel", channel).Msg("no sender for channel")
		return
	}
	opts := domain.SendOptions{SuppressEcho: true}
	if err := sender.SendText(ctx, recipientID, domain.Text{Body: text}, opts); err != nil {
		r.log.Error().Err(err).
			Str("channel", channel).
			Str("recipient_id", recipientID).
			Msg("outbound text dispatch failed")
		return
	}
	r.log.Info().
		Str("channel", channel).
		Str("recipient_id", recipientID).
		Msg("outbound text dispatched")
}

func (r *Router) dispatchMedia(ctx context.Context, channel, recipientID string, media domain.Media) {
	sender, ok := r.senders[channel]
	if !ok {
		r.log.Warn().Str("channel", channel).Msg("no sender for channel")
		return
	}
	if err := sender.SendMedia(ctx, recipientID, media); err != nil {
		r.log.Error().Err(err).
			Str("channel", channel).
			Str("recipient_id", recipientID).
			Str("media_type", string(media.Type)).
			Msg("outbound media dispatch failed")
		return
	}
	r.log.Info().
		Str("channel", channel).
		Str("recipient_id", recipientID).
		Str("media_type", string(media.Type)).
		Msg("outbound media dispatched")
}
