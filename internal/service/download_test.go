package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/arturkryukov/sharebox/internal/domain/model"
)

// uploadFile — вспомогательная загрузка файла для тестов скачивания.
func uploadFile(t *testing.T, env *testEnv, data string, params UploadParams) *model.FileRecord {
	t.Helper()

	svc := NewUploadService(env.cfg, env.blobs, env.reg, nil, testLogger())
	params.Reader = strings.NewReader(data)
	params.Size = int64(len(data))

	result, uploadErr := svc.Upload(params)
	if uploadErr != nil {
		t.Fatalf("ошибка загрузки: %v", uploadErr)
	}
	return result.Record
}

// serve выполняет скачивание и возвращает рекордер и ошибку сервиса.
func serve(svc *DownloadService, fileCode, password string) (*httptest.ResponseRecorder, *DownloadError) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/file/"+fileCode, nil)
	return w, svc.Serve(w, r, fileCode, password)
}

// TestServe_RoundTrip проверяет скачивание: байты совпадают с
// загруженными, заголовки выставлены.
func TestServe_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	data := "содержимое для скачивания"
	rec := uploadFile(t, env, data, UploadParams{OriginalName: "doc.txt", ContentType: "text/plain"})

	svc := NewDownloadService(env.blobs, env.reg, nil, testLogger())
	w, serveErr := serve(svc, rec.Code, "")
	if serveErr != nil {
		t.Fatalf("ошибка скачивания: %v", serveErr)
	}

	if w.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получено %d", w.Code)
	}
	if got := w.Body.String(); got != data {
		t.Errorf("ожидалось тело %q, получено %q", data, got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("ожидался Content-Type 'text/plain', получено %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "doc.txt") {
		t.Errorf("Content-Disposition должен содержать имя файла, получено %q", cd)
	}

	// Обычная запись переживает скачивание
	fresh, err := env.reg.Lookup(rec.Code)
	if err != nil {
		t.Fatalf("запись должна остаться в реестре: %v", err)
	}
	if fresh.DownloadCount != 1 {
		t.Errorf("ожидался счётчик 1, получено %d", fresh.DownloadCount)
	}
}

// TestServe_NotFound проверяет скачивание по неизвестному коду.
func TestServe_NotFound(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDownloadService(env.blobs, env.reg, nil, testLogger())

	_, serveErr := serve(svc, "AB23CD", "")
	if serveErr == nil {
		t.Fatal("ожидалась ошибка для неизвестного кода")
	}
	if serveErr.StatusCode != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получено %d", serveErr.StatusCode)
	}
}

// TestServe_WrongPasswordIsFree проверяет, что неверный пароль даёт 403
// и не расходует лимит скачиваний.
func TestServe_WrongPasswordIsFree(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadFile(t, env, "секрет", UploadParams{
		OriginalName: "secret.txt",
		Password:     "hunter2",
		OneTime:      true,
	})

	svc := NewDownloadService(env.blobs, env.reg, nil, testLogger())

	// Несколько неверных попыток подряд
	for i := 0; i < 3; i++ {
		_, serveErr := serve(svc, rec.Code, "wrong")
		if serveErr == nil {
			t.Fatal("ожидалась ошибка для неверного пароля")
		}
		if serveErr.StatusCode != http.StatusForbidden {
			t.Errorf("ожидался статус 403, получено %d", serveErr.StatusCode)
		}
	}

	// Лимит не тронут: верный пароль всё ещё скачивает файл
	fresh, err := env.reg.Lookup(rec.Code)
	if err != nil {
		t.Fatalf("неверные пароли не должны уничтожать запись: %v", err)
	}
	if fresh.DownloadCount != 0 {
		t.Errorf("неверный пароль не должен расходовать лимит, счётчик %d", fresh.DownloadCount)
	}

	w, serveErr := serve(svc, rec.Code, "hunter2")
	if serveErr != nil {
		t.Fatalf("верный пароль должен скачивать файл: %v", serveErr)
	}
	if w.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получено %d", w.Code)
	}
}

// TestServe_OneTimeBurn проверяет burn-семантику: первое скачивание
// успешно, запись и блоб уничтожены, повторное — 404.
func TestServe_OneTimeBurn(t *testing.T) {
	env := newTestEnv(t)
	data := "одноразовые данные"
	rec := uploadFile(t, env, data, UploadParams{OriginalName: "once.bin", OneTime: true})

	svc := NewDownloadService(env.blobs, env.reg, nil, testLogger())

	w, serveErr := serve(svc, rec.Code, "")
	if serveErr != nil {
		t.Fatalf("первое скачивание должно быть успешным: %v", serveErr)
	}
	if got := w.Body.String(); got != data {
		t.Errorf("ожидалось тело %q, получено %q", data, got)
	}

	// Запись и блоб уничтожены
	if _, err := env.reg.Lookup(rec.Code); err == nil {
		t.Error("one-time запись должна исчезнуть после скачивания")
	}
	if env.blobs.Exists(rec.StoragePath) {
		t.Error("блоб one-time записи должен быть удалён")
	}

	// Повторная попытка — 404
	_, serveErr = serve(svc, rec.Code, "")
	if serveErr == nil || serveErr.StatusCode != http.StatusNotFound {
		t.Errorf("повторное скачивание должно давать 404, получено %v", serveErr)
	}
}

// TestServe_ConcurrentOneTime проверяет гонку за one-time файл:
// полный ответ получает ровно один клиент.
func TestServe_ConcurrentOneTime(t *testing.T) {
	env := newTestEnv(t)
	data := "одноразовые данные"
	rec := uploadFile(t, env, data, UploadParams{OriginalName: "once.bin", OneTime: true})

	svc := NewDownloadService(env.blobs, env.reg, nil, testLogger())

	const workers = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		notFound int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, serveErr := serve(svc, rec.Code, "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case serveErr == nil:
				winners++
				if got := w.Body.String(); got != data {
					t.Errorf("победитель получил неполное тело: %q", got)
				}
			case serveErr.StatusCode == http.StatusNotFound || serveErr.StatusCode == http.StatusGone:
				notFound++
			default:
				t.Errorf("неожиданная ошибка: %v", serveErr)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("ожидался ровно 1 успешный клиент, получено %d", winners)
	}
	if winners+notFound != workers {
		t.Errorf("ожидалось %d завершённых запросов, получено %d", workers, winners+notFound)
	}
	if env.reg.Count() != 0 {
		t.Errorf("после burn реестр должен быть пуст, записей: %d", env.reg.Count())
	}
}

// TestServe_BlobMissing проверяет поведение при рассинхронизации:
// запись есть, блоб с диска исчез.
func TestServe_BlobMissing(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadFile(t, env, "data", UploadParams{OriginalName: "gone.txt"})

	// Симулируем потерю блоба
	if err := env.blobs.Delete(rec.StoragePath); err != nil {
		t.Fatalf("ошибка удаления блоба: %v", err)
	}

	svc := NewDownloadService(env.blobs, env.reg, nil, testLogger())
	_, serveErr := serve(svc, rec.Code, "")
	if serveErr == nil {
		t.Fatal("ожидалась ошибка при отсутствии блоба")
	}
	if serveErr.StatusCode != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получено %d", serveErr.StatusCode)
	}
}
