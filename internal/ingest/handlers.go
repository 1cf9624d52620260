package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/reconcile"
)

// ingestWasender handles a WhatsApp gateway messages.upsert event.
func (p *Pipeline) ingestWasender(ctx context.Context, raw map[string]any) error {
	msgs, ok := payload.Map(raw, "data", "messages")
	if !ok {
		return errors.New("missing data.messages")
	}
	key, _ := payload.Map(msgs, "key")
	msg, _ := payload.Map(msgs, "message")

	text, ok := payload.Text(msg, "conversation")
	if !ok {
		text, _ = payload.Text(msg, "extendedTextMessage", "text")
	}

	remote, ok := payload.Text(key, "remoteJid")
	if !ok {
		remote, _ = payload.Text(key, "participant")
	}
	if remote == "" {
		return errors.New("missing remote jid")
	}
	msisdn := remote
	if at := strings.IndexByte(remote, '@'); at >= 0 {
		msisdn = remote[:at]
	}
	pushName, ok := payload.Text(msgs, "pushName")
	if !ok {
		pushName = msisdn
	}

	inboxID, ok := p.inboxes["whatsapp"]
	if !ok {
		return errors.New("WhatsApp inbox is not configured")
	}

	contact, err := p.svc.EnsureContact(ctx, reconcile.EnsureContactParams{
		InboxID:          inboxID,
		SearchKey:        msisdn,
		Name:             pushName,
		Phone:            msisdn,
		CustomAttributes: map[string]any{"wa_remote_jid": remote},
	})
	if err != nil {
		return err
	}

	// WhatsApp threads bind to the bare msisdn, not the contact-inbox
	// source id.
	convID, err := p.svc.EnsureConversation(ctx, inboxID, contact.ContactID, msisdn, nil)
	if err != nil {
		return err
	}

	if _, err := p.svc.CreateMessage(ctx, convID, strings.TrimSpace(text), chatwoot.MessageIncoming); err != nil {
		return err
	}
	p.log.Info().Int("conversation", convID).Int("inbox", inboxID).Msg("whatsapp message ingested")
	return nil
}

// ingestTelegram handles both directions of the personal-account bridge:
// incoming messages (from_id) and the account's own sends (to_id). The
// counterpart user is the helpdesk contact either way.
func (p *Pipeline) ingestTelegram(ctx context.Context, raw map[string]any, idKey string, direction chatwoot.MessageType) error {
	text, _ := payload.Text(raw, "text")
	userID, _ := payload.Text(raw, idKey)
	username, _ := payload.Text(raw, "username")
	name, ok := payload.Text(raw, "name")
	if !ok {
		if name = username; name == "" {
			name = userID
		}
	}

	inboxID, ok := p.inboxes["telegram"]
	if !ok {
		return errors.New("Telegram inbox is not configured")
	}

	custom := map[string]any{}
	if userID != "" {
		custom["telegram_user_id"] = userID
	}
	if username != "" {
		custom["telegram_username"] = username
	}
	searchKey := username
	if searchKey == "" {
		searchKey = userID
	}
	if searchKey == "" {
		return errors.New("missing telegram user reference")
	}

	contact, err := p.svc.EnsureContact(ctx, reconcile.EnsureContactParams{
		InboxID:          inboxID,
		SearchKey:        searchKey,
		Name:             name,
		CustomAttributes: custom,
	})
	if err != nil {
		return err
	}

	convID, err := p.svc.EnsureConversation(ctx, inboxID, contact.ContactID, contact.SourceID, nil)
	if err != nil {
		return err
	}

	attachmentPath, _ := payload.Text(raw, "attachment_path")
	contentType, _ := payload.Text(raw, "attachment_content_type")
	if attachmentPath != "" {
		if _, statErr := os.Stat(attachmentPath); statErr == nil {
			// The bridge hands over a temp file; remove it win or lose.
			defer os.Remove(attachmentPath)
			_, err = p.svc.CreateMessageWithAttachment(ctx, convID, text, attachmentPath, contentType, direction)
			if err != nil {
				return err
			}
			p.log.Info().Int("conversation", convID).Str("direction", string(direction)).Msg("telegram attachment ingested")
			return nil
		}
	}

	if _, err := p.svc.CreateMessage(ctx, convID, text, direction); err != nil {
		return err
	}
	p.log.Info().Int("conversation", convID).Str("direction", string(direction)).Msg("telegram message ingested")
	return nil
}

// ingestVK handles a Callback API message_new event, enriching the
// contact from the user's VK profile when a fetcher is configured.
func (p *Pipeline) ingestVK(ctx context.Context, raw map[string]any) error {
	message, ok := payload.Map(raw, "message")
	if !ok {
		return errors.New("missing message object")
	}
	text, _ := payload.Text(message, "text")
	peerID, _ := payload.Text(message, "peer_id")
	fromID, ok := payload.Text(message, "from_id")
	if !ok {
		fromID = peerID
	}
	if fromID == "" {
		return errors.New("missing vk sender id")
	}

	inboxID, ok := p.inboxes["vk"]
	if !ok {
		return errors.New("VK inbox is not configured")
	}

	custom := map[string]any{"vk_user_id": fromID, "vk_peer_id": peerID}
	var additional map[string]any
	name := fromID

	if p.profiles != nil {
		profile, err := p.profiles.FetchProfile(ctx, fromID)
		if err != nil {
			p.log.Warn().Err(err).Str("user_id", fromID).Msg("vk profile lookup failed")
		} else {
			if dn := profile.DisplayName(); dn != "" {
				name = dn
			}
			if profile.Bdate != "" {
				custom["vk_bdate"] = profile.Bdate
			}
			if profile.City != "" {
				additional = map[string]any{"city": profile.City}
			}
		}
	}

	contact, err := p.svc.EnsureContact(ctx, reconcile.EnsureContactParams{
		InboxID:              inboxID,
		SearchKey:            fromID,
		Name:                 name,
		CustomAttributes:     custom,
		AdditionalAttributes: additional,
	})
	if err != nil {
		return err
	}

	convID, err := p.svc.EnsureConversation(ctx, inboxID, contact.ContactID, contact.SourceID, nil)
	if err != nil {
		return err
	}

	if _, err := p.svc.CreateMessage(ctx, convID, text, chatwoot.MessageIncoming); err != nil {
		return fmt.Errorf("creating vk message: %w", err)
	}
	p.log.Info().Int("conversation", convID).Int("inbox", inboxID).Msg("vk message ingested")
	return nil
}
