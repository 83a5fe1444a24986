package plugin

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorell/launchdeck/internal/notify"
	"github.com/tmorell/launchdeck/internal/tenant"
)

func newWebhookRouter(t *testing.T, received *int, opts ...HandlerOption) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	def := &Definition{
		Key:  "pager",
		Name: "Pager",
		Hooks: Hooks{
			OnReceiveWebhook: func(ctx context.Context, tenantID string, payload []byte) error {
				*received++
				return nil
			},
		},
	}
	reg := MustNewRegistry(Group{
		Key:     "alerting",
		Name:    "Alerting",
		Plugins: map[string]*Definition{"pager": def},
	})

	store := tenant.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &tenant.Tenant{
		ID: "ten_1", Name: "Acme", Slug: "acme", Status: tenant.StatusActive,
		Settings: tenant.Settings{Plugins: reg.DefaultSettings()},
	}))

	h := NewHandler(NewManager(reg, store, slog.Default()), opts...)
	r := gin.New()
	h.RegisterWebhookRoutes(r.Group(""))
	return r
}

func postHook(r *gin.Engine, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hooks/ten_1/alerting/pager", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Launchdeck-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReceiveWebhook_NoSecretConfigured(t *testing.T) {
	var received int
	r := newWebhookRouter(t, &received)

	w := postHook(r, []byte(`{"incident":"123"}`), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, received)
}

func TestReceiveWebhook_ValidSignature(t *testing.T) {
	var received int
	r := newWebhookRouter(t, &received, WithWebhookSecret("topsecret"))

	body := []byte(`{"incident":"123"}`)
	w := postHook(r, body, notify.Sign(body, "topsecret"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, received)
}

func TestReceiveWebhook_RejectsUnsigned(t *testing.T) {
	var received int
	r := newWebhookRouter(t, &received, WithWebhookSecret("topsecret"))

	w := postHook(r, []byte(`{"incident":"123"}`), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, received)
}

func TestReceiveWebhook_RejectsBadSignature(t *testing.T) {
	var received int
	r := newWebhookRouter(t, &received, WithWebhookSecret("topsecret"))

	body := []byte(`{"incident":"123"}`)
	w := postHook(r, body, notify.Sign(body, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, received)
}
