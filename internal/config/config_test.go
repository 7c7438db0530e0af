package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHATBOT_API_BASE_URL", "http://upstream:8000/")

	cfg := Load()

	assert.Equal(t, "http://upstream:8000", cfg.Chatbot.BaseURL)
	assert.Equal(t, "http://upstream:8000/chatbot", cfg.Chatbot.StreamURL())
	assert.Equal(t, "English", cfg.Chatbot.Language)
	assert.Equal(t, 2*time.Minute, cfg.Chatbot.StageTimeout)
	assert.Equal(t, time.Hour, cfg.Chatbot.ConversationTTL)
	assert.Equal(t, DefaultFallbackContent, cfg.Chatbot.FallbackContent)
	assert.Equal(t, "CHAT_TURN_EVENTS", cfg.Events.TurnTopic)
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "90s", want: 90 * time.Second},
		{name: "bare seconds", value: "45", want: 45 * time.Second},
		{name: "zero disables", value: "0", want: 0},
		{name: "garbage falls back", value: "soon", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("TEST_DURATION", time.Minute))
		})
	}
}
