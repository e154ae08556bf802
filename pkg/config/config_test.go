package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://relay.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://relay.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 25*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 64, cfg.SubscriberBuffer)
	assert.Equal(t, "me", cfg.SelfID)
	assert.True(t, cfg.IsDevelopment())
}

func TestMessagesURL(t *testing.T) {
	cfg := &Config{GraphAPIURL: "https://graph.example.com/v19.0/", PhoneNumberID: "123"}
	assert.Equal(t, "https://graph.example.com/v19.0/123/messages", cfg.MessagesURL())
	assert.Equal(t, "https://graph.example.com/v19.0/123/media", cfg.MediaUploadURL())

	cfg.WhatsAppAPIURL = "https://override.example.com/messages"
	assert.Equal(t, "https://override.example.com/messages", cfg.MessagesURL())

	assert.Empty(t, (&Config{}).MessagesURL())
}

func TestOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: "http://a.test, http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}
