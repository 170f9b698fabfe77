package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	DBDSN string

	SessionSecret string
	SessionTTL    time.Duration
	SessionStore  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// uploads
	UploadDir         string
	UploadRetention   time.Duration
	MaxUploadBytes    int64
	AllowedExtensions []string
	JanitorInterval   time.Duration

	// AI provider
	AIProvider        string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenRouterSiteURL string
	OpenRouterAppName string
	OllamaBaseURL     string
	OllamaModel       string
	CompletionTimeout time.Duration

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	LogLevel  string
	LogFormat string
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":5000")
	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/career_chat?charset=utf8mb4&parseTime=true&loc=Local
	v.SetDefault("DB_DSN", "file:career_chat.db")

	v.SetDefault("SESSION_SECRET", "dev-secret-change-me")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("SESSION_STORE", "memory")

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_RETENTION", 24*time.Hour)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(10<<20))
	v.SetDefault("ALLOWED_EXTENSIONS", "pdf,docx,txt,png,jpg,jpeg")
	v.SetDefault("JANITOR_INTERVAL", 10*time.Minute)

	v.SetDefault("AI_PROVIDER", "openai")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4-turbo")
	v.SetDefault("OPENROUTER_SITE_URL", "")
	v.SetDefault("OPENROUTER_APP_NAME", "")
	v.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3:latest")
	v.SetDefault("COMPLETION_TIMEOUT", 60*time.Second)

	v.SetDefault("RABBIT_URL", "")
	v.SetDefault("RABBIT_QUEUE", "upload_cleanup")
	v.SetDefault("WORKER_CONCURRENCY", 2)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	concurrency := v.GetInt("WORKER_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 2
	}
	if concurrency > 50 {
		concurrency = 50
	}

	maxUpload := v.GetInt64("MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	return Config{
		HTTPAddr: v.GetString("HTTP_ADDR"),
		DBDSN:    v.GetString("DB_DSN"),

		SessionSecret: v.GetString("SESSION_SECRET"),
		SessionTTL:    positive(v.GetDuration("SESSION_TTL"), 24*time.Hour),
		SessionStore:  strings.ToLower(strings.TrimSpace(v.GetString("SESSION_STORE"))),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		UploadDir:         v.GetString("UPLOAD_DIR"),
		UploadRetention:   positive(v.GetDuration("UPLOAD_RETENTION"), 24*time.Hour),
		MaxUploadBytes:    maxUpload,
		AllowedExtensions: splitList(v.GetString("ALLOWED_EXTENSIONS")),
		JanitorInterval:   positive(v.GetDuration("JANITOR_INTERVAL"), 10*time.Minute),

		AIProvider:        strings.ToLower(strings.TrimSpace(v.GetString("AI_PROVIDER"))),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIModel:       v.GetString("OPENAI_MODEL"),
		OpenRouterSiteURL: v.GetString("OPENROUTER_SITE_URL"),
		OpenRouterAppName: v.GetString("OPENROUTER_APP_NAME"),
		OllamaBaseURL:     v.GetString("OLLAMA_BASE_URL"),
		OllamaModel:       v.GetString("OLLAMA_MODEL"),
		CompletionTimeout: positive(v.GetDuration("COMPLETION_TIMEOUT"), 60*time.Second),

		RabbitURL:         v.GetString("RABBIT_URL"),
		RabbitQueue:       v.GetString("RABBIT_QUEUE"),
		WorkerConcurrency: concurrency,

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// splitList parses "pdf, .DOCX,txt" into {"pdf","docx","txt"}.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
