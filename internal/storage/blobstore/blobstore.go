// Пакет blobstore — операции с блобами (содержимым загруженных файлов)
// на диске. Запись атомарна: temp файл → fsync → atomic rename, поэтому
// прерванная загрузка не оставляет видимого блоба. Имя блоба
// генерируется случайно и из публичного кода не выводится: утечка
// формата кода не позволяет угадать путь на диске.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore — управление блобами на диске.
type BlobStore struct {
	// dataDir — корневая директория хранения блобов (SB_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения блоба.
type SaveResult struct {
	// StoragePath — имя блоба относительно dataDir
	StoragePath string
	// FullPath — абсолютный путь блоба на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт BlobStore. Создаёт директорию данных, если её нет.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &BlobStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск.
// Паттерн: temp файл → запись → fsync → atomic rename. При любой
// ошибке temp файл удаляется — полузаписанный блоб не становится
// видимым.
func (bs *BlobStore) Save(reader io.Reader, originalName string) (*SaveResult, error) {
	storageName := generateStorageName(originalName)
	fullPath := filepath.Join(bs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: storageName,
		FullPath:    fullPath,
		Size:        size,
	}, nil
}

// Open открывает блоб для чтения. Вызывающий код обязан закрыть файл.
// Открытый дескриптор переживает последующий Delete — можно сначала
// открыть, затем удалить и спокойно дочитать поток.
func (bs *BlobStore) Open(storagePath string) (*os.File, error) {
	fullPath := filepath.Join(bs.dataDir, storagePath)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("блоб не найден: %s", storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия блоба %s: %w", storagePath, err)
	}
	return f, nil
}

// Delete удаляет блоб с диска. Идемпотентно: отсутствие блоба не
// ошибка — гонка Reaper'а с burn-скачиванием безвредна.
func (bs *BlobStore) Delete(storagePath string) error {
	fullPath := filepath.Join(bs.dataDir, storagePath)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления блоба %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование блоба на диске.
func (bs *BlobStore) Exists(storagePath string) bool {
	_, err := os.Stat(filepath.Join(bs.dataDir, storagePath))
	return err == nil
}

// FullPath возвращает абсолютный путь блоба на диске.
func (bs *BlobStore) FullPath(storagePath string) string {
	return filepath.Join(bs.dataDir, storagePath)
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// generateStorageName генерирует имя блоба на диске.
// Формат: {timestamp}_{uuid8}{ext}. Оригинальное расширение
// сохраняется (в санированном виде), само имя — нет.
func generateStorageName(originalName string) string {
	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	ext := sanitizeExt(filepath.Ext(originalName))
	return fmt.Sprintf("%s_%s%s", ts, uid, ext)
}

// sanitizeExt оставляет в расширении только безопасные символы.
// Длина ограничена, разделители путей отбрасываются целиком.
func sanitizeExt(ext string) string {
	if ext == "" || strings.ContainsAny(ext, "/\\") {
		return ""
	}

	var result strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}

	out := result.String()
	if len(out) > 16 {
		out = out[:16]
	}
	return out
}
