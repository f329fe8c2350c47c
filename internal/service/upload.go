// Пакет service — бизнес-логика Sharebox.
// upload.go — приём загрузки (Ingress). Инвариант порядка: блоб
// полностью записан на диск до того, как запись становится видимой в
// реестре. Прерванная загрузка не оставляет ни блоба, ни записи.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apierrors "github.com/arturkryukov/sharebox/internal/api/errors"
	"github.com/arturkryukov/sharebox/internal/api/middleware"
	"github.com/arturkryukov/sharebox/internal/config"
	"github.com/arturkryukov/sharebox/internal/domain/model"
	"github.com/arturkryukov/sharebox/internal/notify"
	"github.com/arturkryukov/sharebox/internal/policy"
	"github.com/arturkryukov/sharebox/internal/registry"
	"github.com/arturkryukov/sharebox/internal/storage/blobstore"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// ContentType — MIME-тип из multipart part (может быть пустым)
	ContentType string
	// Size — заявленный размер (из multipart header), 0 если неизвестен
	Size int64
	// Password — пароль доступа (опционально)
	Password string
	// OneTime — уничтожить файл после первого скачивания
	OneTime bool
	// NotifyAddress — адрес для уведомлений (опционально)
	NotifyAddress string
}

// UploadResult — результат загрузки.
type UploadResult struct {
	Record *model.FileRecord
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	cfg      *config.Config
	blobs    *blobstore.BlobStore
	reg      *registry.Registry
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	cfg *config.Config,
	blobs *blobstore.BlobStore,
	reg *registry.Registry,
	notifier notify.Notifier,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:      cfg,
		blobs:    blobs,
		reg:      reg,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// Upload принимает файл и регистрирует запись.
//
// Поток:
//  1. Проверка заявленного размера
//  2. Запись блоба (temp → fsync → rename)
//  3. Определение Content-Type (если multipart его не дал)
//  4. Хэширование пароля
//  5. Вставка в реестр (генерация кода + проверка уникальности)
//
// При ошибке после шага 2 блоб удаляется — осиротевших блобов загрузка
// не оставляет.
func (s *UploadService) Upload(params UploadParams) (*UploadResult, *UploadError) {
	// 1. Заявленный размер проверяем до чтения потока; фактический
	// размер дополнительно ограничен MaxBytesReader на границе HTTP.
	if params.Size > s.cfg.MaxUploadBytes {
		middleware.OperationsTotal.WithLabelValues("upload", "too_large").Inc()
		return nil, &UploadError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, s.cfg.MaxUploadBytes),
		}
	}

	// 2. Сохраняем блоб
	saved, err := s.blobs.Save(params.Reader, params.OriginalName)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.OperationsTotal.WithLabelValues("upload", "too_large").Inc()
			return nil, &UploadError{
				StatusCode: http.StatusRequestEntityTooLarge,
				Code:       apierrors.CodeFileTooLarge,
				Message:    fmt.Sprintf("Размер загрузки превышает максимум %d байт", s.cfg.MaxUploadBytes),
			}
		}

		s.logger.Error("Ошибка сохранения блоба",
			slog.String("filename", params.OriginalName),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла на диск",
		}
	}

	// 3. Content-Type: берём из multipart, иначе определяем по содержимому
	contentType := detectContentType(params.ContentType, saved.FullPath)

	// 4. Хэшируем пароль
	passwordHash, err := policy.HashPassword(params.Password)
	if err != nil {
		_ = s.blobs.Delete(saved.StoragePath)
		s.logger.Error("Ошибка хэширования пароля", slog.String("error", err.Error()))
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка обработки загрузки",
		}
	}

	// 5. Формируем запись и вставляем в реестр
	var maxDownloads *int
	if params.OneTime {
		one := 1
		maxDownloads = &one
	}

	rec := &model.FileRecord{
		OriginalName:  params.OriginalName,
		StoragePath:   saved.StoragePath,
		ContentType:   contentType,
		Size:          saved.Size,
		CreatedAt:     time.Now().UTC(),
		PasswordHash:  passwordHash,
		MaxDownloads:  maxDownloads,
		NotifyAddress: params.NotifyAddress,
	}

	c, err := s.reg.Create(rec)
	if err != nil {
		_ = s.blobs.Delete(saved.StoragePath)
		s.logger.Error("Ошибка вставки записи в реестр",
			slog.String("filename", params.OriginalName),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка регистрации файла",
		}
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.RecordsTotal.Inc()

	notify.Dispatch(s.notifier, s.logger, notify.Event{
		Kind:         notify.EventUploaded,
		Code:         c,
		OriginalName: rec.OriginalName,
		Address:      rec.NotifyAddress,
	})

	s.logger.Info("Файл загружен",
		slog.String("code", c),
		slog.String("filename", rec.OriginalName),
		slog.Int64("size", rec.Size),
		slog.Bool("protected", rec.IsProtected()),
		slog.Bool("one_time", params.OneTime),
	)

	return &UploadResult{Record: rec}, nil
}

// detectContentType возвращает MIME-тип загрузки. Если multipart part
// не дал типа — определяем по содержимому сохранённого блоба.
func detectContentType(declared, fullPath string) string {
	if declared != "" {
		// Убираем параметры (charset и т.д.)
		if idx := strings.Index(declared, ";"); idx != -1 {
			declared = strings.TrimSpace(declared[:idx])
		}
		return declared
	}

	mtype, err := mimetype.DetectFile(fullPath)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
