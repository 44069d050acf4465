package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitFromEnvWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "analyzer.log")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_FORMAT", "json")
	t.Cleanup(func() { Set(nil) })

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	Named("test").Info("hello", zap.String("k", "v"))
	Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
}

func TestInitFromEnvWithoutSinksIsNop(t *testing.T) {
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "false")
	t.Cleanup(func() { Set(nil) })

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	if L().Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected nop logger")
	}
}
