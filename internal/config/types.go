package config

// Config is the root configuration for the bridge. Channel sections are
// pointers: a nil section means that channel is not configured and its
// adapter is never built.
type Config struct {
	Chatwoot ChatwootConfig  `yaml:"chatwoot"`
	Wasender *WasenderConfig `yaml:"wasender,omitempty"`
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	VK       *VKConfig       `yaml:"vk,omitempty"`
	Gateway  GatewayConfig   `yaml:"gateway,omitempty"`
	Dispatch DispatchConfig  `yaml:"dispatch,omitempty"`
	Journal  JournalConfig   `yaml:"journal,omitempty"`
	Logging  LoggingConfig   `yaml:"logging,omitempty"`
}

// ChatwootConfig points at the helpdesk instance and maps per-channel
// webhook path tokens.
type ChatwootConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	AccountID      int    `yaml:"accountId"`
	APIAccessToken string `yaml:"apiAccessToken"`
	// WebhookIDs maps channel tag -> webhook path token. The helpdesk
	// webhook URL for a channel is /chatwoot/webhook/<token>.
	WebhookIDs map[string]string `yaml:"webhookIds,omitempty"`
}

// WasenderConfig configures the WhatsApp gateway channel.
type WasenderConfig struct {
	WebhookID     string `yaml:"webhookId"`
	WebhookSecret string `yaml:"webhookSecret"`
	APIKey        string `yaml:"apiKey"`
	APIBase       string `yaml:"apiBase,omitempty"`
	InboxID       int    `yaml:"inboxId"`
}

// TelegramConfig configures the personal-account Telegram channel. The
// MTProto session lives in the bridge process at BridgeURL.
type TelegramConfig struct {
	BridgeURL   string `yaml:"bridgeUrl"`
	BridgeToken string `yaml:"bridgeToken,omitempty"`
	InboxID     int    `yaml:"inboxId"`
}

// VKConfig configures the VK community channel (Callback API).
type VKConfig struct {
	CallbackID   string `yaml:"callbackId"`
	GroupID      int    `yaml:"groupId"`
	AccessToken  string `yaml:"accessToken"`
	Secret       string `yaml:"secret"`
	Confirmation string `yaml:"confirmation"`
	APIVersion   string `yaml:"apiVersion,omitempty"`
	InboxID      int    `yaml:"inboxId"`
}

// GatewayConfig controls the HTTP delivery server.
type GatewayConfig struct {
	Port int    `yaml:"port,omitempty"`
	Bind string `yaml:"bind,omitempty"` // "loopback" | "lan"
}

// DispatchConfig guards the manual /dispatch endpoint. An empty token
// disables the endpoint.
type DispatchConfig struct {
	Token string `yaml:"token,omitempty"`
}

// JournalConfig controls the ingestion-failure journal.
type JournalConfig struct {
	Path           string `yaml:"path,omitempty"`
	RetentionHours int    `yaml:"retentionHours,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// ChannelForWebhookID resolves the channel tag bound to a helpdesk
// webhook path token.
func (c ChatwootConfig) ChannelForWebhookID(id string) (string, bool) {
	for channel, webhookID := range c.WebhookIDs {
		if webhookID == id && webhookID != "" {
			return channel, true
		}
	}
	return "", false
}

// InboxIDByChannel builds the channel tag -> inbox id map for the
// configured channels. Used to filter account-wide helpdesk webhooks down
// to the inbox each channel owns.
func (c *Config) InboxIDByChannel() map[string]int {
	m := map[string]int{}
	if c.Wasender != nil {
		m["whatsapp"] = c.Wasender.InboxID
	}
	if c.Telegram != nil {
		m["telegram"] = c.Telegram.InboxID
	}
	if c.VK != nil {
		m["vk"] = c.VK.InboxID
	}
	return m
}
