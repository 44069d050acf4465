package config

import (
	"testing"
	"time"
)

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("ANALYZER_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without ANALYZER_BASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANALYZER_BASE_URL", "http://localhost:8000/")
	t.Setenv("STREAM_MODE", "")
	t.Setenv("ARTIFACT_STORE", "")
	t.Setenv("REQUEST_TIMEOUT_SEC", "")
	t.Setenv("PREVIEW_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.BaseURL)
	}
	if cfg.StreamMode != StreamSSE || cfg.ArtifactStore != StoreFile {
		t.Fatalf("unexpected defaults: mode=%s store=%s", cfg.StreamMode, cfg.ArtifactStore)
	}
	if cfg.RequestTimeout != 10*time.Second || !cfg.PreviewEnabled {
		t.Fatalf("unexpected defaults: timeout=%s preview=%v", cfg.RequestTimeout, cfg.PreviewEnabled)
	}
}

func TestLoadDerivesWSURL(t *testing.T) {
	t.Setenv("ANALYZER_BASE_URL", "https://analyzer.example.com")
	t.Setenv("ANALYZER_WS_URL", "")
	t.Setenv("STREAM_MODE", "ws")
	t.Setenv("ARTIFACT_STORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WSURL != "wss://analyzer.example.com" {
		t.Fatalf("unexpected ws url: %q", cfg.WSURL)
	}
}

func TestLoadRejectsRedisStoreWithoutURL(t *testing.T) {
	t.Setenv("ANALYZER_BASE_URL", "http://localhost:8000")
	t.Setenv("STREAM_MODE", "")
	t.Setenv("ARTIFACT_STORE", "redis")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for redis store without REDIS_URL")
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("ANALYZER_BASE_URL", "http://localhost:8000")
	t.Setenv("ARTIFACT_STORE", "")
	t.Setenv("STREAM_MODE", "")
	t.Setenv("UPLOAD_TIMEOUT_SEC", "soon")
	t.Setenv("MAX_UPLOAD_MB", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UploadTimeout != 300*time.Second || cfg.MaxUploadBytes != 512<<20 {
		t.Fatalf("invalid values should keep defaults: upload=%s max=%d", cfg.UploadTimeout, cfg.MaxUploadBytes)
	}
}
