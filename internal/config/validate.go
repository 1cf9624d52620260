package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Helpdesk connection is mandatory: every flow goes through it.
	if cfg.Chatwoot.BaseURL == "" {
		issues = append(issues, ValidationIssue{Path: "chatwoot.baseUrl", Message: "base URL is required"})
	}
	if cfg.Chatwoot.AccountID == 0 {
		issues = append(issues, ValidationIssue{Path: "chatwoot.accountId", Message: "account id is required"})
	}
	if cfg.Chatwoot.APIAccessToken == "" {
		issues = append(issues, ValidationIssue{Path: "chatwoot.apiAccessToken", Message: "API access token is required"})
	}

	knownChannels := []string{"whatsapp", "telegram", "vk"}
	for channel := range cfg.Chatwoot.WebhookIDs {
		if !slices.Contains(knownChannels, channel) {
			issues = append(issues, ValidationIssue{
				Path:    "chatwoot.webhookIds." + channel,
				Message: fmt.Sprintf("unknown channel, must be one of %v", knownChannels),
			})
		}
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	if cfg.Wasender != nil {
		w := cfg.Wasender
		if w.WebhookID == "" {
			issues = append(issues, ValidationIssue{Path: "wasender.webhookId", Message: "webhook id is required"})
		}
		if w.WebhookSecret == "" {
			issues = append(issues, ValidationIssue{Path: "wasender.webhookSecret", Message: "webhook secret is required"})
		}
		if w.APIKey == "" {
			issues = append(issues, ValidationIssue{Path: "wasender.apiKey", Message: "API key is required"})
		}
		if w.InboxID == 0 {
			issues = append(issues, ValidationIssue{Path: "wasender.inboxId", Message: "inbox id is required"})
		}
	}

	if cfg.Telegram != nil {
		t := cfg.Telegram
		if t.BridgeURL == "" {
			issues = append(issues, ValidationIssue{Path: "telegram.bridgeUrl", Message: "bridge URL is required"})
		}
		if t.InboxID == 0 {
			issues = append(issues, ValidationIssue{Path: "telegram.inboxId", Message: "inbox id is required"})
		}
	}

	if cfg.VK != nil {
		v := cfg.VK
		if v.CallbackID == "" {
			issues = append(issues, ValidationIssue{Path: "vk.callbackId", Message: "callback id is required"})
		}
		if v.GroupID == 0 {
			issues = append(issues, ValidationIssue{Path: "vk.groupId", Message: "group id is required"})
		}
		if v.AccessToken == "" {
			issues = append(issues, ValidationIssue{Path: "vk.accessToken", Message: "access token is required"})
		}
		if v.Secret == "" {
			issues = append(issues, ValidationIssue{Path: "vk.secret", Message: "secret is required"})
		}
		if v.Confirmation == "" {
			issues = append(issues, ValidationIssue{Path: "vk.confirmation", Message: "confirmation string is required"})
		}
		if v.InboxID == 0 {
			issues = append(issues, ValidationIssue{Path: "vk.inboxId", Message: "inbox id is required"})
		}
	}

	return issues
}
