package routing

import (
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
)

// DeriveRecipient rebuilds the network-side recipient address for an
// outbound helpdesk event. The helpdesk never stores this address; it is
// reconstructed from sender attributes written during inbound ingestion,
// so each chain mirrors the attribute-writing order of that channel.
//
// Chains, first non-empty wins:
//
//	whatsapp: phone_number
//	telegram: custom telegram_username, additional social_telegram_user_name,
//	          phone_number, "id:"+custom telegram_user_id,
//	          "id:"+additional social_telegram_user_id
//	vk:       custom vk_peer_id, custom vk_user_id
//
// Unknown channels get no guess.
func DeriveRecipient(channel string, p map[string]any) (string, bool) {
	sender, _ := payload.Map(p, "conversation", "meta", "sender")

	switch channel {
	case domain.ChannelWhatsApp:
		return payload.Text(sender, "phone_number")

	case domain.ChannelTelegram:
		if username, ok := payload.Text(sender, "custom_attributes", "telegram_username"); ok {
			return username, true
		}
		// Set by the helpdesk-side telegram integration bot.
		if username, ok := payload.Text(sender, "additional_attributes", "social_telegram_user_name"); ok {
			return username, true
		}
		if phone, ok := payload.Text(sender, "phone_number"); ok {
			return phone, true
		}
		if id, ok := payload.Text(sender, "custom_attributes", "telegram_user_id"); ok {
			return "id:" + id, true
		}
		if id, ok := payload.Text(sender, "additional_attributes", "social_telegram_user_id"); ok {
			return "id:" + id, true
		}
		return "", false

	case domain.ChannelVK:
		if peer, ok := payload.Text(sender, "custom_attributes", "vk_peer_id"); ok {
			return peer, true
		}
		if user, ok := payload.Text(sender, "custom_attributes", "vk_user_id"); ok {
			return user, true
		}
		return "", false
	}

	return "", false
}
