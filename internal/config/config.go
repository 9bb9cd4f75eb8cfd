package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds both the client and the reference backend settings.
type Config struct {
	Client struct {
		APIURL     string
		Timeout    time.Duration
		SessionDir string
		SessionTTL time.Duration
	}
	Server struct {
		Addr        string
		Store       string // mem | pg
		PostgresDSN string
		Bus         string // mem | pg
		CORSOrigins string
		PageSize    int
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads an optional .env file and then the environment. Missing or
// malformed values fall back to defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Client.APIURL = strings.TrimRight(getEnv("QUILL_API_URL", "http://localhost:3000/api"), "/")
	cfg.Client.Timeout = getDuration("QUILL_TIMEOUT", 15*time.Second)
	cfg.Client.SessionDir = getEnv("QUILL_SESSION_DIR", defaultSessionDir())
	cfg.Client.SessionTTL = time.Duration(getInt("QUILL_SESSION_HOURS", 8)) * time.Hour

	cfg.Server.Addr = getEnv("QUILL_ADDR", ":3000")
	cfg.Server.Store = getEnv("STORE", "mem")
	cfg.Server.PostgresDSN = getEnv("POSTGRES_DSN", "")
	cfg.Server.Bus = getEnv("BUS", "mem")
	cfg.Server.CORSOrigins = getEnv("CORS_ORIGINS", "")
	cfg.Server.PageSize = getInt("QUILL_PAGE_SIZE", 20)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".quill", "session")
	}
	return filepath.Join(home, ".quill", "session")
}
