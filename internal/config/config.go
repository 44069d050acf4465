package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Stream transport modes for the live update channel.
const (
	StreamSSE = "sse"
	StreamWS  = "ws"
)

// Artifact store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type AppConfig struct {
	BaseURL    string
	WSURL      string
	StreamMode string

	ClientID string

	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	MaxUploadBytes int64

	ArtifactStore string
	ArtifactDir   string
	ArtifactTTL   time.Duration

	RedisURL    string
	DatabaseURL string

	MessagesDir    string
	PreviewEnabled bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		StreamMode:     StreamSSE,
		RequestTimeout: 10 * time.Second,
		UploadTimeout:  300 * time.Second,
		MaxUploadBytes: 512 << 20,
		ArtifactStore:  StoreFile,
		ArtifactTTL:    time.Hour,
		PreviewEnabled: true,
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("ANALYZER_BASE_URL")), "/")
	cfg.WSURL = strings.TrimRight(strings.TrimSpace(os.Getenv("ANALYZER_WS_URL")), "/")
	cfg.ClientID = strings.TrimSpace(os.Getenv("X_CLIENT_ID"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("STREAM_MODE"))); v != "" {
		cfg.StreamMode = v
	}
	if n, ok := positiveInt("REQUEST_TIMEOUT_SEC"); ok {
		cfg.RequestTimeout = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("UPLOAD_TIMEOUT_SEC"); ok {
		cfg.UploadTimeout = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("MAX_UPLOAD_MB"); ok {
		cfg.MaxUploadBytes = int64(n) << 20
	}

	// Artifacts
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("ARTIFACT_STORE"))); v != "" {
		cfg.ArtifactStore = v
	}
	cfg.ArtifactDir = strings.TrimSpace(os.Getenv("ARTIFACT_DIR"))
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = os.TempDir()
	}
	if n, ok := positiveInt("ARTIFACT_TTL_SEC"); ok {
		cfg.ArtifactTTL = time.Duration(n) * time.Second
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("PREVIEW_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PreviewEnabled = b
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.BaseURL == "" {
		return errors.New("ANALYZER_BASE_URL is required")
	}
	switch c.StreamMode {
	case StreamSSE:
	case StreamWS:
		if c.WSURL == "" {
			derived, err := deriveWSURL(c.BaseURL)
			if err != nil {
				return fmt.Errorf("ANALYZER_WS_URL is required for STREAM_MODE=ws: %w", err)
			}
			c.WSURL = derived
		}
	default:
		return fmt.Errorf("unsupported STREAM_MODE: %s", c.StreamMode)
	}
	switch c.ArtifactStore {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for ARTIFACT_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported ARTIFACT_STORE: %s", c.ArtifactStore)
	}
	return nil
}

// deriveWSURL maps http(s)://host/base to ws(s)://host/base.
func deriveWSURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
