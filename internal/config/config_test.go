package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestQuizConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     QuizConfig
		wantErr bool
	}{
		{"defaults", DefaultQuizConfig(), false},
		{"threshold above range", QuizConfig{PassThreshold: 101, DefaultMaxAttempts: 3}, true},
		{"negative threshold", QuizConfig{PassThreshold: -1, DefaultMaxAttempts: 3}, true},
		{"zero attempts", QuizConfig{PassThreshold: 70, DefaultMaxAttempts: 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	yaml := []byte("server:\n  port: \"9090\"\njwt:\n  secret: test-secret\n  expire_hours: 2\nstorage:\n  type: local\n  local_path: " + filepath.Join(dir, "uploads") + "\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.JWT.ExpireTime != 2*time.Hour {
		t.Errorf("jwt expire = %v, want 2h", cfg.JWT.ExpireTime)
	}
	if cfg.Quiz.PassThreshold != 70 || cfg.Quiz.DefaultMaxAttempts != 3 {
		t.Errorf("quiz defaults = %+v", cfg.Quiz)
	}
	if cfg.AI.Timeout() != 30*time.Second {
		t.Errorf("ai timeout = %v, want 30s", cfg.AI.Timeout())
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads")); err != nil {
		t.Errorf("local storage dir not created: %v", err)
	}
}

func TestLoadConfigRejectsShortSecretInRelease(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	yaml := []byte("server:\n  mode: release\njwt:\n  secret: short\nstorage:\n  type: minio\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for short release secret")
	}
}
