package service

import (
	"net/http"
	"strings"
	"testing"

	"github.com/arturkryukov/sharebox/internal/policy"
)

// TestUpload_Success проверяет успешную загрузку: блоб на диске, запись
// в реестре, код присвоен.
func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUploadService(env.cfg, env.blobs, env.reg, nil, testLogger())

	data := "содержимое отчёта"
	result, uploadErr := svc.Upload(UploadParams{
		Reader:       strings.NewReader(data),
		OriginalName: "report.pdf",
		ContentType:  "application/pdf",
		Size:         int64(len(data)),
	})
	if uploadErr != nil {
		t.Fatalf("ошибка загрузки: %v", uploadErr)
	}

	rec := result.Record
	if rec.Code == "" {
		t.Error("записи должен быть присвоен код")
	}
	if rec.Size != int64(len(data)) {
		t.Errorf("ожидался размер %d, получено %d", len(data), rec.Size)
	}
	if rec.ContentType != "application/pdf" {
		t.Errorf("ожидался тип 'application/pdf', получено %q", rec.ContentType)
	}
	if rec.IsProtected() {
		t.Error("запись без пароля не должна быть защищённой")
	}
	if rec.MaxDownloads != nil {
		t.Error("обычная загрузка не должна иметь лимита скачиваний")
	}

	// Блоб на диске, запись в реестре
	if !env.blobs.Exists(rec.StoragePath) {
		t.Error("блоб должен существовать после загрузки")
	}
	if _, err := env.reg.Lookup(rec.Code); err != nil {
		t.Errorf("запись должна быть в реестре: %v", err)
	}
}

// TestUpload_WithPassword проверяет, что пароль хэшируется и не
// хранится открытым текстом.
func TestUpload_WithPassword(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUploadService(env.cfg, env.blobs, env.reg, nil, testLogger())

	result, uploadErr := svc.Upload(UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "secret.txt",
		ContentType:  "text/plain",
		Size:         4,
		Password:     "hunter2",
	})
	if uploadErr != nil {
		t.Fatalf("ошибка загрузки: %v", uploadErr)
	}

	rec := result.Record
	if !rec.IsProtected() {
		t.Error("запись с паролем должна быть защищённой")
	}
	if rec.PasswordHash == "hunter2" {
		t.Error("пароль не должен храниться открытым текстом")
	}
	if err := policy.Authorize(rec, "hunter2"); err != nil {
		t.Errorf("верный пароль должен проходить проверку: %v", err)
	}
	if err := policy.Authorize(rec, "wrong"); err == nil {
		t.Error("неверный пароль не должен проходить проверку")
	}
}

// TestUpload_OneTime проверяет установку лимита одного скачивания.
func TestUpload_OneTime(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUploadService(env.cfg, env.blobs, env.reg, nil, testLogger())

	result, uploadErr := svc.Upload(UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "once.bin",
		Size:         4,
		OneTime:      true,
	})
	if uploadErr != nil {
		t.Fatalf("ошибка загрузки: %v", uploadErr)
	}

	rec := result.Record
	if rec.MaxDownloads == nil || *rec.MaxDownloads != 1 {
		t.Errorf("one-time загрузка должна иметь лимит 1, получено %v", rec.MaxDownloads)
	}
}

// TestUpload_TooLarge проверяет отклонение загрузки сверх лимита:
// ни блоба, ни записи не остаётся.
func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUploadService(env.cfg, env.blobs, env.reg, nil, testLogger())

	_, uploadErr := svc.Upload(UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "huge.bin",
		Size:         env.cfg.MaxUploadBytes + 1,
	})
	if uploadErr == nil {
		t.Fatal("ожидалась ошибка превышения размера")
	}
	if uploadErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("ожидался статус 413, получено %d", uploadErr.StatusCode)
	}
	if env.reg.Count() != 0 {
		t.Errorf("отклонённая загрузка не должна оставлять записей, получено %d", env.reg.Count())
	}
}

// TestUpload_ContentTypeFallback проверяет определение типа по
// содержимому, когда multipart тип не дал.
func TestUpload_ContentTypeFallback(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUploadService(env.cfg, env.blobs, env.reg, nil, testLogger())

	// PNG magic bytes
	pngHeader := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16)
	result, uploadErr := svc.Upload(UploadParams{
		Reader:       strings.NewReader(pngHeader),
		OriginalName: "image",
		ContentType:  "",
		Size:         int64(len(pngHeader)),
	})
	if uploadErr != nil {
		t.Fatalf("ошибка загрузки: %v", uploadErr)
	}

	if result.Record.ContentType != "image/png" {
		t.Errorf("ожидался тип 'image/png', получено %q", result.Record.ContentType)
	}
}

// TestDetectContentType_StripsParams проверяет отбрасывание параметров
// заявленного MIME-типа.
func TestDetectContentType_StripsParams(t *testing.T) {
	got := detectContentType("text/plain; charset=utf-8", "")
	if got != "text/plain" {
		t.Errorf("ожидалось 'text/plain', получено %q", got)
	}
}
