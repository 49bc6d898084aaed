package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 8080 || cfg.AccessTokenTTL != 15*time.Minute || cfg.DocstoreNotify {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Archive.Retention != 0 {
		t.Fatalf("archive should be disabled by default, got %v", cfg.Archive.Retention)
	}
	if cfg.Game.JoinTimeout != 5*time.Second {
		t.Fatalf("unexpected join timeout %v", cfg.Game.JoinTimeout)
	}
}

func TestLoadReadsEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SOCIALCONNECT_PORT=9090\nSOCIALCONNECT_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("SOCIALCONNECT_LOG_LEVEL", "warn")
	t.Setenv("SOCIALCONNECT_DOCSTORE_NOTIFY", "true")
	t.Setenv("SOCIALCONNECT_GAME_PUSH_RATE", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("SOCIALCONNECT_PORT") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 9090 {
		t.Fatalf("expected port from .env, got %d", cfg.AppPort)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("environment must win over .env, got %q", cfg.LogLevel)
	}
	if !cfg.DocstoreNotify {
		t.Fatal("expected notify to be enabled")
	}
	if cfg.Game.PushRate != 10 {
		t.Fatalf("invalid values should fall back, got %v", cfg.Game.PushRate)
	}
}

func TestLoadRequiresBucketForArchive(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SOCIALCONNECT_ARCHIVE_RETENTION", "24h")
	t.Setenv("SOCIALCONNECT_S3_BUCKET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without a bucket")
	}
}
