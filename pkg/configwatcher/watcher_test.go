package configwatcher

import (
	"context"
	"elearn_backend/internal/config"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, dir string, threshold int) {
	t.Helper()
	yaml := fmt.Sprintf("jwt:\n  secret: test-secret\nstorage:\n  type: local\n  local_path: %s\nquiz:\n  pass_threshold: %d\n  default_max_attempts: 3\n",
		filepath.Join(dir, "uploads"), threshold)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, 70)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, filepath.Join(dir, "config.yaml"), func(cfg *config.Config) {
			reloaded <- cfg
		})
	}()

	// 写入间隔大于防抖时间，确保监听就绪后的某次写入能触发重载
	rewrite := 2 * debounce
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, 55)

	deadline := time.After(15 * time.Second)
	tick := time.NewTicker(rewrite)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Quiz.PassThreshold != 55 {
				t.Fatalf("pass threshold = %d, want 55", cfg.Quiz.PassThreshold)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("WatchConfig returned %v", err)
			}
			return
		case <-tick.C:
			writeConfig(t, dir, 55)
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), func(*config.Config) {})
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
