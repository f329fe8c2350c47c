// files.go — HTTP handlers файловых операций Sharebox.
// Upload, Info, Download.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/sharebox/internal/api/errors"
	"github.com/arturkryukov/sharebox/internal/code"
	"github.com/arturkryukov/sharebox/internal/config"
	"github.com/arturkryukov/sharebox/internal/registry"
	"github.com/arturkryukov/sharebox/internal/service"
)

// multipartFormOverhead — запас к лимиту тела на multipart-заголовки
// и текстовые поля формы.
const multipartFormOverhead = 1 << 20

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	cfg         *config.Config
	uploadSvc   *service.UploadService
	downloadSvc *service.DownloadService
	reg         *registry.Registry
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	cfg *config.Config,
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	reg *registry.Registry,
) *FilesHandler {
	return &FilesHandler{
		cfg:         cfg,
		uploadSvc:   uploadSvc,
		downloadSvc: downloadSvc,
		reg:         reg,
	}
}

// uploadResponse — тело ответа POST /api/upload.
type uploadResponse struct {
	Code string `json:"code"`
	// ExpiresAt — epoch-миллисекунды
	ExpiresAt int64 `json:"expiresAt"`
}

// infoResponse — тело ответа GET /api/info/{code}.
type infoResponse struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	// UploadTime — epoch-миллисекунды
	UploadTime  int64 `json:"uploadTime"`
	IsProtected bool  `json:"isProtected"`
}

// Upload обрабатывает POST /api/upload.
// Multipart form: file (обязательно), password, oneTime ("true"/нет), email.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Жёсткий лимит тела: клиент не может залить больше, чем заявил
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartFormOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32 MB буфер в памяти
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, "Размер загрузки превышает допустимый максимум")
			return
		}
		apierrors.ValidationError(w, "Ошибка разбора multipart-формы")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	result, uploadErr := h.uploadSvc.Upload(service.UploadParams{
		Reader:        file,
		OriginalName:  header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Size:          header.Size,
		Password:      r.FormValue("password"),
		OneTime:       r.FormValue("oneTime") == "true",
		NotifyAddress: r.FormValue("email"),
	})
	if uploadErr != nil {
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	rec := result.Record
	writeJSON(w, http.StatusOK, uploadResponse{
		Code:      rec.Code,
		ExpiresAt: rec.ExpiresAt(h.cfg.TTL).UnixMilli(),
	})
}

// Info обрабатывает GET /api/info/{code}.
// Не расходует лимит скачиваний и не проверяет пароль — сообщает
// только, что файл защищён.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	c := code.Normalize(chi.URLParam(r, "code"))
	if !code.IsValid(c) {
		apierrors.NotFound(w, "Файл не найден или срок его хранения истёк")
		return
	}

	rec, err := h.reg.Lookup(c)
	if err != nil {
		apierrors.NotFound(w, "Файл не найден или срок его хранения истёк")
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Code:        rec.Code,
		Filename:    rec.OriginalName,
		Size:        rec.Size,
		Type:        rec.ContentType,
		UploadTime:  rec.CreatedAt.UnixMilli(),
		IsProtected: rec.IsProtected(),
	})
}

// Download обрабатывает GET /api/file/{code}?pwd=...
// 404 — код неизвестен/вычищен, 403 — неверный пароль,
// 410 — лимит скачиваний уже исчерпан.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	c := code.Normalize(chi.URLParam(r, "code"))
	if !code.IsValid(c) {
		apierrors.NotFound(w, "Файл не найден или срок его хранения истёк")
		return
	}

	downloadErr := h.downloadSvc.Serve(w, r, c, r.URL.Query().Get("pwd"))
	if downloadErr != nil {
		apierrors.WriteError(w, downloadErr.StatusCode, downloadErr.Code, downloadErr.Message)
	}
}

// writeJSON — вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
