package domain

// Bus topics connecting the delivery layer, the ingestion pipeline, and
// the outbound router.
const (
	TopicWasenderIncoming = "wasender.incoming"
	TopicWasenderOutgoing = "wasender.outgoing"
	TopicTelegramIncoming = "telegram.incoming"
	TopicTelegramOutgoing = "telegram.outgoing"
	TopicVKIncoming       = "vk.incoming"
	TopicVKConfirmation   = "vk.confirmation"
	TopicChatwootIncoming = "chatwoot.incoming"
	TopicChatwootOutgoing = "chatwoot.outgoing"
)
