package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetupConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.toml")
	cfg, err := SetupConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Editor.SessionTTL.Duration() != 30*time.Minute {
		t.Fatalf("session ttl %v", cfg.Editor.SessionTTL.Duration())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `session_ttl = '30m0s'`) {
		t.Fatalf("duration not written as text:\n%s", b)
	}
}

func TestSetupConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[editor]
session_ttl = "90s"

[services.segmentation]
url = "http://sam:5000"
fallback = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := SetupConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Editor.SessionTTL.Duration() != 90*time.Second {
		t.Fatalf("session ttl %v", cfg.Editor.SessionTTL.Duration())
	}
	if cfg.Services.Segmentation.URL != "http://sam:5000" || cfg.Services.Segmentation.Fallback {
		t.Fatalf("segmentation %+v", cfg.Services.Segmentation)
	}
	// 未出现的字段保留默认值
	if cfg.Editor.FrameCount != 8 || cfg.Server.HTTP.Port != 15123 {
		t.Fatalf("defaults lost: %+v", cfg.Editor)
	}
}

func TestSetupConfigInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_ = os.WriteFile(path, []byte("[editor]\nsession_ttl = \"soon\"\n"), 0o644)
	if _, err := SetupConfig(path); err == nil {
		t.Fatal("expect error for invalid duration")
	}
}
