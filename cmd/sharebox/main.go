// Точка входа Sharebox — сервиса эфемерного обмена файлами.
// Файл живёт до истечения TTL или до первого скачивания (one-time),
// доступ по короткому коду и, опционально, паролю.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/arturkryukov/sharebox/internal/api/handlers"
	"github.com/arturkryukov/sharebox/internal/config"
	"github.com/arturkryukov/sharebox/internal/notify"
	"github.com/arturkryukov/sharebox/internal/registry"
	"github.com/arturkryukov/sharebox/internal/server"
	"github.com/arturkryukov/sharebox/internal/service"
	"github.com/arturkryukov/sharebox/internal/storage/blobstore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Sharebox запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("ttl", cfg.TTL.String()),
		slog.String("sweep_interval", cfg.SweepInterval.String()),
		slog.Int64("max_upload_bytes", cfg.MaxUploadBytes),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилище блобов
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации BlobStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Реестр записей. Не персистентный: блобы, оставшиеся от
	// предыдущего запуска, недостижимы и подчищаются вручную.
	reg := registry.New(logger)

	// 3. Нотификатор (fire-and-forget)
	notifier := notify.NewLogNotifier(logger)

	// 4. Сервисы
	uploadSvc := service.NewUploadService(cfg, blobs, reg, notifier, logger)
	downloadSvc := service.NewDownloadService(blobs, reg, notifier, logger)

	// 5. Reaper — фоновая очистка по TTL
	ctx := context.Background()
	reaper := service.NewReaper(reg, blobs, cfg.TTL, cfg.SweepInterval, logger)
	reaper.Start(ctx)

	// 6. Handlers
	filesHandler := handlers.NewFilesHandler(cfg, uploadSvc, downloadSvc, reg)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, reg)

	// 7. Запуск HTTP-сервера
	srv := server.New(cfg, logger, filesHandler, healthHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	reaper.Stop()

	logger.Info("Sharebox остановлен")
}
