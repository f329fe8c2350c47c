package service

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/arturkryukov/sharebox/internal/config"
	"github.com/arturkryukov/sharebox/internal/registry"
	"github.com/arturkryukov/sharebox/internal/storage/blobstore"
)

// testLogger создаёт логгер для тестов (только ошибки).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testConfig создаёт минимальную конфигурацию для тестов сервисов.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:           8080,
		DataDir:        t.TempDir(),
		TTL:            time.Hour,
		SweepInterval:  time.Minute,
		MaxUploadBytes: 1 << 20, // 1 MB
		LogFormat:      "text",
	}
}

// testEnv — общая обвязка тестов сервисов.
type testEnv struct {
	cfg   *config.Config
	blobs *blobstore.BlobStore
	reg   *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	return &testEnv{
		cfg:   cfg,
		blobs: blobs,
		reg:   registry.New(testLogger()),
	}
}
