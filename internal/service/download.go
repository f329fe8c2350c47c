// download.go — сервис скачивания файлов (Egress).
// Порядок проверок: существование → пароль → лимит. Неверный пароль
// не расходует лимит. Решение "скачать и сжечь" принимается атомарно
// в реестре; физическое удаление блоба — best-effort после решения.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/sharebox/internal/api/errors"
	"github.com/arturkryukov/sharebox/internal/api/middleware"
	"github.com/arturkryukov/sharebox/internal/notify"
	"github.com/arturkryukov/sharebox/internal/policy"
	"github.com/arturkryukov/sharebox/internal/registry"
	"github.com/arturkryukov/sharebox/internal/storage/blobstore"
)

// DownloadError — ошибка скачивания с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	blobs    *blobstore.BlobStore
	reg      *registry.Registry
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(
	blobs *blobstore.BlobStore,
	reg *registry.Registry,
	notifier notify.Notifier,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		blobs:    blobs,
		reg:      reg,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту через http.ServeContent (Range requests
// обрабатываются автоматически).
//
// Попытка расходует лимит в момент решения, а не по завершении
// передачи: прерванное скачивание счётчик не откатывает. Если лимит
// достигнут этой попыткой, запись уже удалена из реестра атомарно;
// блоб открывается до unlink, поэтому поток доживает до конца.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, fileCode, password string) *DownloadError {
	// 1. Существование
	rec, err := s.reg.Lookup(fileCode)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
		return &DownloadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "Файл не найден или срок его хранения истёк",
		}
	}

	// 2. Пароль — до любого расхода лимита
	if err := policy.Authorize(rec, password); err != nil {
		middleware.OperationsTotal.WithLabelValues("download", "forbidden").Inc()
		return &DownloadError{
			StatusCode: http.StatusForbidden,
			Code:       apierrors.CodeForbidden,
			Message:    "Неверный пароль",
		}
	}

	// 3. Лимит (защитная ветка, см. policy.CheckQuota)
	if err := policy.CheckQuota(rec); err != nil {
		s.reg.Delete(rec.Code)
		if delErr := s.blobs.Delete(rec.StoragePath); delErr != nil {
			s.logger.Error("Ошибка удаления блоба исчерпанной записи",
				slog.String("code", rec.Code),
				slog.String("error", delErr.Error()),
			)
		}
		middleware.OperationsTotal.WithLabelValues("download", "gone").Inc()
		return &DownloadError{
			StatusCode: http.StatusGone,
			Code:       apierrors.CodeGone,
			Message:    "Файл уже был скачан и уничтожен",
		}
	}

	// 4. Атомарно: инкремент счётчика + решение об удалении
	rec, shouldDelete, err := s.reg.RecordDownloadAndMaybeExpire(rec.Code)
	if err != nil {
		if errors.Is(err, registry.ErrExhausted) {
			if delErr := s.blobs.Delete(rec.StoragePath); delErr != nil {
				s.logger.Error("Ошибка удаления блоба исчерпанной записи",
					slog.String("code", rec.Code),
					slog.String("error", delErr.Error()),
				)
			}
			middleware.OperationsTotal.WithLabelValues("download", "gone").Inc()
			return &DownloadError{
				StatusCode: http.StatusGone,
				Code:       apierrors.CodeGone,
				Message:    "Файл уже был скачан и уничтожен",
			}
		}
		// Проиграна гонка за последний слот — запись уже отсутствует
		middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
		return &DownloadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "Файл не найден или срок его хранения истёк",
		}
	}

	// 5. Открываем блоб ДО удаления: открытый дескриптор переживает
	// unlink, поток дочитывается до конца
	file, openErr := s.blobs.Open(rec.StoragePath)
	if openErr != nil {
		s.logger.Error("Блоб не найден на диске",
			slog.String("code", rec.Code),
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", openErr.Error()),
		)
		if shouldDelete {
			s.finishBurn(rec.Code, rec.StoragePath, rec.OriginalName, rec.NotifyAddress)
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return &DownloadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "Файл не найден или срок его хранения истёк",
		}
	}
	defer file.Close()

	// 6. Сжигаем до отдачи байтов: решение уже принято атомарно,
	// очистка best-effort
	if shouldDelete {
		s.finishBurn(rec.Code, rec.StoragePath, rec.OriginalName, rec.NotifyAddress)
	}

	stat, statErr := file.Stat()
	if statErr != nil {
		s.logger.Error("Ошибка stat блоба",
			slog.String("code", rec.Code),
			slog.String("error", statErr.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	// 7. Отдаём с оригинальным именем файла
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.OriginalName))
	http.ServeContent(w, r, rec.OriginalName, stat.ModTime(), file)

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	if !shouldDelete {
		notify.Dispatch(s.notifier, s.logger, notify.Event{
			Kind:         notify.EventDownloaded,
			Code:         rec.Code,
			OriginalName: rec.OriginalName,
			Address:      rec.NotifyAddress,
		})
	}

	s.logger.Debug("Файл скачан",
		slog.String("code", rec.Code),
		slog.String("filename", rec.OriginalName),
		slog.Int64("size", rec.Size),
		slog.Bool("burned", shouldDelete),
	)

	return nil
}

// finishBurn — best-effort очистка после терминального скачивания.
// Запись из реестра уже удалена атомарно; здесь удаляется блоб и
// отправляется уведомление. Ошибка unlink логируется и не влияет на
// результат скачивания.
func (s *DownloadService) finishBurn(fileCode, storagePath, originalName, address string) {
	if err := s.blobs.Delete(storagePath); err != nil {
		s.logger.Error("Ошибка удаления блоба при burn",
			slog.String("code", fileCode),
			slog.String("storage_path", storagePath),
			slog.String("error", err.Error()),
		)
	}

	middleware.RecordsTotal.Dec()

	notify.Dispatch(s.notifier, s.logger, notify.Event{
		Kind:         notify.EventBurned,
		Code:         fileCode,
		OriginalName: originalName,
		Address:      address,
	})

	s.logger.Info("Файл уничтожен после скачивания",
		slog.String("code", fileCode),
	)
}
