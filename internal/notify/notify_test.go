package notify

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
)

func TestPostJSON_Success(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewSender(slog.Default())
	err := s.PostJSON(context.Background(), srv.URL, map[string]string{"content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "hello", payload["content"])
}

func TestPostJSON_Signed(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Launchdeck-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(slog.Default())
	err := s.PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"}, WithHMAC("topsecret"))
	require.NoError(t, err)
	require.NotEmpty(t, gotSig)
	assert.True(t, VerifySignature(gotBody, "topsecret", gotSig))
	assert.False(t, VerifySignature(gotBody, "wrong", gotSig))
}

func TestPostJSON_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSender(slog.Default())
	err := s.PostJSON(context.Background(), srv.URL, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestPostJSON_CustomHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(slog.Default())
	err := s.PostJSON(context.Background(), srv.URL, map[string]string{}, WithHeader("X-Custom", "yes"))
	require.NoError(t, err)
	assert.Equal(t, "yes", got)
}
