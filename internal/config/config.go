package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Registry  RegistryConfig
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Twilio    TwilioConfig
	Log       LogConfig
	Web       WebConfig

	PolicyFile    string // YAML file overriding the embedded resolution policy (optional)
	StopwordsFile string // newline separated stopword list replacing the embedded one (optional)
}

// RegistryConfig points at the case registry (cases, descriptive features, sightings).
type RegistryConfig struct {
	Driver string // sqlite or mysql
	DSN    string // file path for sqlite, go-sql-driver DSN for mysql (e.g., user:pass@tcp(mariadb:3306)/sightmatch)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for the pgvector embedding store (optional)
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type EmbeddingConfig struct {
	StoreBackend string // file or postgres
	StorePath    string // snapshot file used by the file backend
	ServiceURL   string // face embedding service; empty disables photo matching
	MaxImageSize int    // photos are downscaled to this edge length before upload
}

// TwilioConfig holds SMS gateway credentials. Any empty field disables SMS delivery.
type TwilioConfig struct {
	AccountSID         string
	AuthToken          string
	FromNumber         string
	DefaultCountryCode string
}

// Enabled reports whether all credentials needed to send SMS are present.
func (c *TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type LogConfig struct {
	Level  string
	Format string // auto, console or json
}

type WebConfig struct {
	RateLimit      float64 // sustained requests per second for write endpoints
	RateBurst      int
	AllowedOrigins []string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Registry: RegistryConfig{
			Driver: strings.ToLower(envString("REGISTRY_DRIVER", "sqlite")),
			DSN:    envString("REGISTRY_DSN", "sightmatch.db"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Embedding: EmbeddingConfig{
			StoreBackend: strings.ToLower(envString("EMBEDDING_STORE_BACKEND", "file")),
			StorePath:    envString("EMBEDDING_STORE_PATH", "data/embeddings.gob"),
			ServiceURL:   os.Getenv("FACE_EMBEDDING_URL"),
			MaxImageSize: envInt("FACE_EMBEDDING_MAX_IMAGE_SIZE", 1600),
		},
		Twilio: TwilioConfig{
			AccountSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:          os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber:         os.Getenv("TWILIO_PHONE_NUMBER"),
			DefaultCountryCode: envString("SMS_DEFAULT_COUNTRY_CODE", "91"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "auto"),
		},
		Web: WebConfig{
			RateLimit:      envFloat("WEB_RATE_LIMIT", 5),
			RateBurst:      envInt("WEB_RATE_BURST", 10),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		PolicyFile:    os.Getenv("POLICY_FILE"),
		StopwordsFile: os.Getenv("STOPWORDS_FILE"),
	}
}
