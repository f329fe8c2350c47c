// reaper.go — фоновая очистка записей с истёкшим TTL.
//
// Reaper по тикеру снимает snapshot реестра, находит записи старше TTL
// и для каждой выполняет Registry.Delete + best-effort удаление блоба.
// Ошибка удаления блоба изолирована на уровне записи: логируется и не
// прерывает обработку остальных. Работает независимо от Ingress/Egress
// на протяжении всей жизни процесса; гонка с burn-скачиванием безвредна
// благодаря идемпотентности Delete.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/sharebox/internal/api/middleware"
	"github.com/arturkryukov/sharebox/internal/registry"
	"github.com/arturkryukov/sharebox/internal/storage/blobstore"
)

// Prometheus метрики Reaper
var (
	// reaperRunsTotal — количество запусков Reaper.
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sb_reaper_runs_total",
		Help: "Общее количество запусков Reaper",
	})

	// reaperReapedTotal — количество вычищенных записей.
	reaperReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sb_reaper_reaped_total",
		Help: "Общее количество записей, вычищенных Reaper по TTL",
	})

	// reaperDurationSeconds — длительность выполнения одного прохода.
	reaperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sb_reaper_duration_seconds",
		Help:    "Длительность прохода Reaper в секундах",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// ReaperResult — результат одного прохода Reaper.
type ReaperResult struct {
	// ReapedCount — количество записей, удалённых из реестра
	ReapedCount int
	// BlobErrors — количество ошибок удаления блобов (записи при этом
	// считаются удалёнными)
	BlobErrors int
	// Duration — длительность прохода
	Duration time.Duration
}

// Reaper — фоновая очистка записей по TTL.
type Reaper struct {
	reg      *registry.Registry
	blobs    *blobstore.BlobStore
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReaper создаёт Reaper.
func NewReaper(
	reg *registry.Registry,
	blobs *blobstore.BlobStore,
	ttl time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		reg:      reg,
		blobs:    blobs,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (rp *Reaper) Start(ctx context.Context) {
	reaperCtx, cancel := context.WithCancel(ctx)
	rp.cancel = cancel

	go rp.run(reaperCtx)

	rp.logger.Info("Reaper запущен",
		slog.String("ttl", rp.ttl.String()),
		slog.String("interval", rp.interval.String()),
	)
}

// Stop останавливает фоновый процесс.
func (rp *Reaper) Stop() {
	if rp.cancel != nil {
		rp.cancel()
	}
	rp.logger.Info("Reaper остановлен")
}

// run — основной цикл фоновой горутины.
func (rp *Reaper) run(ctx context.Context) {
	// Первый проход — сразу после старта
	rp.RunOnce()

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.RunOnce()
		}
	}
}

// RunOnce выполняет один проход очистки. Потокобезопасен: mutex
// защищает от параллельного запуска. Использует только публичные
// атомарные операции реестра (Snapshot, Delete).
func (rp *Reaper) RunOnce() *ReaperResult {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	start := time.Now()
	result := &ReaperResult{}

	now := time.Now().UTC()

	for _, rec := range rp.reg.Snapshot() {
		if !rec.IsExpired(now, rp.ttl) {
			continue
		}

		// Запись считается удалённой независимо от судьбы блоба:
		// слот реестра не должен протекать из-за сбоя файловой системы
		if removed := rp.reg.Delete(rec.Code); removed {
			middleware.RecordsTotal.Dec()
		}

		if err := rp.blobs.Delete(rec.StoragePath); err != nil {
			rp.logger.Error("Reaper: ошибка удаления блоба",
				slog.String("code", rec.Code),
				slog.String("storage_path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			result.BlobErrors++
		}

		rp.logger.Debug("Reaper: запись вычищена",
			slog.String("code", rec.Code),
			slog.String("filename", rec.OriginalName),
			slog.Duration("age", now.Sub(rec.CreatedAt)),
		)
		result.ReapedCount++
	}

	result.Duration = time.Since(start)

	reaperRunsTotal.Inc()
	reaperReapedTotal.Add(float64(result.ReapedCount))
	reaperDurationSeconds.Observe(result.Duration.Seconds())

	if result.ReapedCount > 0 {
		rp.logger.Info("Reaper: проход завершён",
			slog.Int("reaped", result.ReapedCount),
			slog.Int("blob_errors", result.BlobErrors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
