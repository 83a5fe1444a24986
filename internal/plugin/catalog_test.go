package plugin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmorell/launchdeck/internal/notify"
)

func TestCatalog_BuildsValidRegistry(t *testing.T) {
	sender := notify.NewSender(slog.Default())
	reg, err := NewRegistry(Catalog(sender)...)
	require.NoError(t, err)

	groups := reg.List()
	require.Len(t, groups, 2)
	assert.Equal(t, "notifications", groups[0].Key)
	assert.Equal(t, "automation", groups[1].Key)

	discord := reg.ListPlugins(Filter{SearchTerm: "discord"})
	require.Len(t, discord, 1)
	assert.Len(t, discord[0].Fields, 2)

	slack := reg.ListPlugins(Filter{SearchTerm: "slack"})
	require.Len(t, slack, 1)
	assert.True(t, slack[0].Options.ComingSoon)
}

func TestDiscord_OnValidate(t *testing.T) {
	ctx := context.Background()
	def := discordDefinition(notify.NewSender(slog.Default()))

	ok, err := def.Hooks.OnValidate(ctx, "ten_1", map[string]any{
		"webhookUrl": "https://discord.com/api/webhooks/123/abc",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = def.Hooks.OnValidate(ctx, "ten_1", map[string]any{
		"webhookUrl": "https://evil.example.com/webhooks/123",
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiscord_SendMessage(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	def := discordDefinition(notify.NewSender(slog.Default()))
	fn := def.Methods["sendMessage"]
	require.NotNil(t, fn)

	config := map[string]any{"webhookUrl": srv.URL, "mentionEveryone": true}
	result, err := fn(context.Background(), "ten_1", config, map[string]any{"message": "deploy done"})
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["delivered"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "@everyone deploy done", payload["content"])
}

func TestDiscord_SendMessage_RequiresMessage(t *testing.T) {
	def := discordDefinition(notify.NewSender(slog.Default()))
	_, err := def.Methods["sendMessage"](context.Background(), "ten_1",
		map[string]any{"webhookUrl": "https://discord.com/api/webhooks/1/a"}, map[string]any{})
	assert.Error(t, err)
}

func TestTelegram_OnValidate(t *testing.T) {
	ctx := context.Background()
	def := telegramDefinition(notify.NewSender(slog.Default()))

	ok, _ := def.Hooks.OnValidate(ctx, "ten_1", map[string]any{"botToken": "123456:ABCdef"})
	assert.True(t, ok)

	ok, _ = def.Hooks.OnValidate(ctx, "ten_1", map[string]any{"botToken": "no-colon"})
	assert.False(t, ok)

	ok, _ = def.Hooks.OnValidate(ctx, "ten_1", map[string]any{"botToken": "abc:def"})
	assert.False(t, ok)
}

func TestOutboundWebhook_PingIsSigned(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Launchdeck-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	def := outboundWebhookDefinition(notify.NewSender(slog.Default()))
	err := def.Hooks.OnUpdate(context.Background(), "ten_1", map[string]any{
		"endpoint": srv.URL,
		"secret":   "shared",
	})
	require.NoError(t, err)
	require.NotEmpty(t, gotSig)
	assert.True(t, notify.VerifySignature(gotBody, "shared", gotSig))
}

func TestOutboundWebhook_OnValidate(t *testing.T) {
	ctx := context.Background()
	def := outboundWebhookDefinition(notify.NewSender(slog.Default()))

	ok, err := def.Hooks.OnValidate(ctx, "ten_1", map[string]any{"endpoint": "http://example.com/hook"})
	require.NoError(t, err)
	assert.False(t, ok, "plain http endpoints are rejected")

	ok, err = def.Hooks.OnValidate(ctx, "ten_1", map[string]any{"endpoint": "https://127.0.0.1/hook"})
	require.NoError(t, err)
	assert.False(t, ok, "loopback endpoints are rejected")

	ok, err = def.Hooks.OnValidate(ctx, "ten_1", map[string]any{"endpoint": "https://10.0.0.5/hook"})
	require.NoError(t, err)
	assert.False(t, ok, "private-network endpoints are rejected")
}
