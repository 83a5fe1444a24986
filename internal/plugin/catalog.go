package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmorell/launchdeck/internal/notify"
	"github.com/tmorell/launchdeck/internal/security"
)

// Catalog builds the built-in integration groups. The returned groups are
// static source data for NewRegistry; nothing here touches tenant state.
func Catalog(sender *notify.Sender) []Group {
	return []Group{
		{
			Key:         "notifications",
			Name:        "Notifications",
			Description: "Send workspace activity to external channels",
			Icon:        "bell",
			Plugins: map[string]*Definition{
				"discord":  discordDefinition(sender),
				"telegram": telegramDefinition(sender),
				"slack": {
					Key:         "slack",
					Name:        "Slack",
					Description: "Post workspace activity to a Slack channel",
					Icon:        "slack",
					Options:     Options{ComingSoon: true, Disabled: true},
					Schema: Schema{
						"webhookUrl": {Type: FieldText, Label: "Incoming webhook URL", Required: true},
					},
				},
			},
		},
		{
			Key:         "automation",
			Name:        "Automation",
			Description: "Forward workspace events to your own systems",
			Icon:        "zap",
			Plugins: map[string]*Definition{
				"outbound-webhook": outboundWebhookDefinition(sender),
			},
		},
	}
}

func discordDefinition(sender *notify.Sender) *Definition {
	post := func(ctx context.Context, config map[string]any, content string) error {
		url, _ := config["webhookUrl"].(string)
		if url == "" {
			return fmt.Errorf("discord: webhookUrl not configured")
		}
		return sender.PostJSON(ctx, url, map[string]any{"content": content})
	}

	return &Definition{
		Key:         "discord",
		Name:        "Discord",
		Description: "Post workspace activity to a Discord channel",
		Icon:        "discord",
		Options:     Options{HelpLink: "https://support.discord.com/hc/en-us/articles/228383668"},
		Schema: Schema{
			"webhookUrl": {
				Type:        FieldText,
				Label:       "Webhook URL",
				Required:    true,
				Placeholder: "https://discord.com/api/webhooks/...",
			},
			"mentionEveryone": {Type: FieldBoolean, Label: "Mention @everyone"},
		},
		Hooks: Hooks{
			OnValidate: func(ctx context.Context, tenantID string, config map[string]any) (bool, error) {
				url, _ := config["webhookUrl"].(string)
				return strings.HasPrefix(url, "https://discord.com/api/webhooks/") ||
					strings.HasPrefix(url, "https://discordapp.com/api/webhooks/"), nil
			},
			OnInstall: func(ctx context.Context, tenantID string) error {
				// Nothing to provision; the welcome message goes out on the
				// OnUpdate that follows first activation.
				return nil
			},
			OnUpdate: func(ctx context.Context, tenantID string, config map[string]any) error {
				return post(ctx, config, "Launchdeck notifications are now connected to this channel.")
			},
		},
		Methods: map[string]MethodFunc{
			"sendMessage": func(ctx context.Context, tenantID string, config map[string]any, args map[string]any) (any, error) {
				msg, _ := args["message"].(string)
				if msg == "" {
					return nil, fmt.Errorf("discord: message is required")
				}
				if mention, _ := config["mentionEveryone"].(bool); mention {
					msg = "@everyone " + msg
				}
				if err := post(ctx, config, msg); err != nil {
					return nil, err
				}
				return map[string]any{"delivered": true}, nil
			},
		},
	}
}

func telegramDefinition(sender *notify.Sender) *Definition {
	send := func(ctx context.Context, config map[string]any, text string) error {
		token, _ := config["botToken"].(string)
		chatID, _ := config["chatId"].(string)
		if token == "" || chatID == "" {
			return fmt.Errorf("telegram: botToken and chatId must be configured")
		}
		url := "https://api.telegram.org/bot" + token + "/sendMessage"
		return sender.PostJSON(ctx, url, map[string]any{"chat_id": chatID, "text": text})
	}

	return &Definition{
		Key:         "telegram",
		Name:        "Telegram",
		Description: "Send workspace activity to a Telegram chat",
		Icon:        "telegram",
		Options:     Options{HelpLink: "https://core.telegram.org/bots#how-do-i-create-a-bot"},
		Schema: Schema{
			"botToken": {
				Type:        FieldText,
				Label:       "Bot token",
				Required:    true,
				Placeholder: "123456:ABC-DEF...",
			},
			"chatId": {Type: FieldText, Label: "Chat ID", Required: true},
		},
		Hooks: Hooks{
			OnValidate: func(ctx context.Context, tenantID string, config map[string]any) (bool, error) {
				token, _ := config["botToken"].(string)
				// Token shape is <numeric id>:<secret>.
				id, rest, found := strings.Cut(token, ":")
				return found && id != "" && rest != "" && !strings.ContainsAny(id, "abcdefghijklmnopqrstuvwxyz"), nil
			},
			OnUpdate: func(ctx context.Context, tenantID string, config map[string]any) error {
				return send(ctx, config, "Launchdeck notifications are now connected to this chat.")
			},
		},
		Methods: map[string]MethodFunc{
			"sendMessage": func(ctx context.Context, tenantID string, config map[string]any, args map[string]any) (any, error) {
				msg, _ := args["message"].(string)
				if msg == "" {
					return nil, fmt.Errorf("telegram: message is required")
				}
				if err := send(ctx, config, msg); err != nil {
					return nil, err
				}
				return map[string]any{"delivered": true}, nil
			},
		},
	}
}

func outboundWebhookDefinition(sender *notify.Sender) *Definition {
	return &Definition{
		Key:         "outbound-webhook",
		Name:        "Outbound webhook",
		Description: "POST workspace events to an endpoint you control, signed with a shared secret",
		Icon:        "webhook",
		Options:     Options{RequiresWebhook: true},
		Schema: Schema{
			"endpoint": {
				Type:        FieldText,
				Label:       "Endpoint URL",
				Required:    true,
				Placeholder: "https://example.com/hooks/launchdeck",
			},
			"secret":     {Type: FieldText, Label: "Signing secret"},
			"maxRetries": {Type: FieldNumber, Label: "Max retries"},
		},
		Hooks: Hooks{
			OnValidate: func(ctx context.Context, tenantID string, config map[string]any) (bool, error) {
				// Tenant-supplied URLs are fetched server-side; https only,
				// no private or loopback targets.
				endpoint, _ := config["endpoint"].(string)
				return security.ValidateEndpointURL(endpoint) == nil, nil
			},
			OnUpdate: func(ctx context.Context, tenantID string, config map[string]any) error {
				endpoint, _ := config["endpoint"].(string)
				if endpoint == "" {
					return nil
				}
				opts := []notify.Option{notify.WithHeader("X-Launchdeck-Event", "ping")}
				if secret, _ := config["secret"].(string); secret != "" {
					opts = append(opts, notify.WithHMAC(secret))
				}
				return sender.PostJSON(ctx, endpoint, map[string]any{"event": "ping", "tenantId": tenantID}, opts...)
			},
			OnReceiveWebhook: func(ctx context.Context, tenantID string, payload []byte) error {
				// Inbound acknowledgements are accepted and dropped; the
				// endpoint only needs the 2xx.
				return nil
			},
		},
	}
}
