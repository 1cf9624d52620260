package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
)

// handleWasenderWebhook accepts WhatsApp gateway events. Security is the
// path token plus a shared-secret signature header.
func (s *Server) handleWasenderWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Wasender == nil {
		writeError(w, http.StatusServiceUnavailable, "WhatsApp channel is not configured")
		return
	}
	if chi.URLParam(r, "webhookID") != s.cfg.Wasender.WebhookID {
		writeError(w, http.StatusForbidden, "invalid webhook ID")
		return
	}
	if r.Header.Get("X-Webhook-Signature") != s.cfg.Wasender.WebhookSecret {
		writeError(w, http.StatusForbidden, "invalid X-Webhook-Signature")
		return
	}

	var p map[string]any
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event, _ := payload.Text(p, "event")
	s.log.Info().Str("event", event).Msg("wasender webhook accepted")

	if event == "messages.upsert" {
		key, ok := payload.Map(p, "data", "messages", "key")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid upsert format")
			return
		}
		topic := domain.TopicWasenderIncoming
		if fromMe, _ := payload.Bool(key, "fromMe"); fromMe {
			topic = domain.TopicWasenderOutgoing
		}
		s.bus.Dispatch(r.Context(), topic, p)
	} else {
		s.log.Info().Str("event", event).Msg("wasender event ignored")
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleChatwootWebhook accepts helpdesk webhooks. The path token selects
// the channel; account-wide events are filtered down to that channel's
// inbox, and the resolved channel tag is injected into conversation meta
// for the outbound router.
func (s *Server) handleChatwootWebhook(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.cfg.Chatwoot.ChannelForWebhookID(chi.URLParam(r, "webhookID"))
	if !ok {
		writeError(w, http.StatusForbidden, "unknown webhook ID")
		return
	}

	var p map[string]any
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, ok := payload.Map(p, "conversation")
	if !ok {
		conv = map[string]any{}
		p["conversation"] = conv
	}

	// Account webhooks carry every inbox; only this channel's passes.
	if expected, ok := s.cfg.InboxIDByChannel()[channel]; ok {
		inboxID, found := payload.Int(conv, "inbox_id")
		if !found {
			inboxID, found = payload.Int(conv, "inbox", "id")
		}
		if found && inboxID != expected {
			s.log.Info().Int("inbox_id", inboxID).Str("channel", channel).
				Int("expected", expected).Msg("chatwoot event ignored: inbox mismatch")
			writeJSON(w, http.StatusOK, map[string]any{"status": "received"})
			return
		}
	}

	meta, ok := payload.Map(conv, "meta")
	if !ok {
		meta = map[string]any{}
		conv["meta"] = meta
	}
	meta["channel"] = channel

	event, _ := payload.Text(p, "event")
	msgType, _ := payload.Text(p, "message_type")
	s.log.Info().Str("event", event).Str("type", msgType).Str("channel", channel).
		Msg("chatwoot webhook accepted")

	if event == "message_created" {
		switch msgType {
		case "incoming":
			s.bus.Dispatch(r.Context(), domain.TopicChatwootIncoming, p)
		case "outgoing":
			s.bus.Dispatch(r.Context(), domain.TopicChatwootOutgoing, p)
		default:
			s.log.Warn().Str("message_type", msgType).Msg("unknown chatwoot message type")
		}
	} else {
		s.log.Info().Str("event", event).Msg("chatwoot event ignored")
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "received"})
}

// handleVKCallback implements the VK Callback API protocol: confirmation
// echo, secret and group checks, and plain-text "ok" acks.
func (s *Server) handleVKCallback(w http.ResponseWriter, r *http.Request) {
	if s.cfg.VK == nil {
		writeError(w, http.StatusServiceUnavailable, "VK channel is not configured")
		return
	}
	if chi.URLParam(r, "callbackID") != s.cfg.VK.CallbackID {
		writeError(w, http.StatusForbidden, "invalid callback ID")
		return
	}

	var p map[string]any
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eventType, _ := payload.Text(p, "type")
	groupID, _ := payload.Int(p, "group_id")
	s.log.Info().Str("type", eventType).Int("group_id", groupID).Msg("vk event received")

	// Confirmation needs no secret: VK sends it before one is agreed.
	if eventType == "confirmation" {
		if groupID != s.cfg.VK.GroupID {
			writeError(w, http.StatusBadRequest, "invalid group_id")
			return
		}
		s.bus.Dispatch(r.Context(), domain.TopicVKConfirmation, map[string]any{
			"group_id": strconv.Itoa(groupID),
		})
		writePlain(w, s.cfg.VK.Confirmation)
		return
	}

	if secret, _ := payload.Text(p, "secret"); secret != s.cfg.VK.Secret {
		writeError(w, http.StatusForbidden, "invalid secret")
		return
	}
	if groupID != s.cfg.VK.GroupID {
		writeError(w, http.StatusBadRequest, "invalid group_id")
		return
	}

	if eventType == "message_new" {
		message, ok := payload.Map(p, "object", "message")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid message_new payload")
			return
		}
		s.bus.Dispatch(r.Context(), domain.TopicVKIncoming, map[string]any{
			"event":   "message_new",
			"message": message,
			"raw":     p,
		})
	} else {
		// Ack everything else so VK stops retrying.
		s.log.Info().Str("type", eventType).Msg("vk event type ignored")
	}

	writePlain(w, "ok")
}

// writePlain answers with the literal body VK expects.
func writePlain(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
