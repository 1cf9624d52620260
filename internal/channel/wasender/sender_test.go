package wasender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
)

func TestSendText(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send-message", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	s := New(srv.URL, "key-123", 7)
	err := s.SendText(context.Background(), "5511999999999", domain.Text{Body: "hi"}, domain.SendOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", auth)
	assert.Equal(t, "5511999999999", got["to"])
	assert.Equal(t, "hi", got["text"])
	assert.Equal(t, domain.ChannelWhatsApp, s.Channel())
	assert.Equal(t, 7, s.InboxID())
}

func TestSendMediaAudioURL(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	s := New(srv.URL, "key", 7)
	err := s.SendMedia(context.Background(), "5511999999999", domain.Media{
		Type: domain.MediaAudio,
		URL:  "https://cdn.example.com/v.ogg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v.ogg", got["audioUrl"])
	assert.NotContains(t, got, "text")
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	s := New(srv.URL, "bad", 7)
	err := s.SendText(context.Background(), "5511999999999", domain.Text{Body: "hi"}, domain.SendOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}
