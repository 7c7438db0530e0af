package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Chatbot  ChatbotConfig
	Events   EventsConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string // empty disables the transcript archive
}

type ChatbotConfig struct {
	BaseURL         string
	APIPath         string
	Language        string
	StageTimeout    time.Duration // 0 disables the per-stage deadline
	ConversationTTL time.Duration
	FallbackContent string
}

type EventsConfig struct {
	TurnTopic string
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

const DefaultFallbackContent = "I couldn't generate a summary, but please check the data sources above."

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Chatbot: ChatbotConfig{
			BaseURL:         strings.TrimRight(getEnv("CHATBOT_API_BASE_URL", "http://localhost:8000"), "/"),
			APIPath:         getEnv("CHATBOT_API_PATH", "/chatbot"),
			Language:        getEnv("CHATBOT_LANGUAGE", "English"),
			StageTimeout:    getEnvAsDuration("CHATBOT_STAGE_TIMEOUT", 2*time.Minute),
			ConversationTTL: getEnvAsDuration("CHATBOT_CONVERSATION_TTL", time.Hour),
			FallbackContent: getEnv("CHATBOT_FALLBACK_CONTENT", DefaultFallbackContent),
		},
		Events: EventsConfig{
			TurnTopic: getEnv("CHAT_TURN_EVENTS_TOPIC", "CHAT_TURN_EVENTS"),
		},
		Tracing: TracingConfig{
			Enabled:  getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// StreamURL is the prefix every stage endpoint is appended to.
func (c ChatbotConfig) StreamURL() string {
	return c.BaseURL + c.APIPath
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs := getEnvAsInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
