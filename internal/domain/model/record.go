// Пакет model — доменные модели Sharebox.
// FileRecord — запись о загруженном файле: публичный код, метаданные,
// политика доступа и счётчик скачиваний. Живёт только в памяти
// (в Registry), на диск не сохраняется: рестарт процесса теряет все
// живые записи — принятое ограничение дизайна.
package model

import (
	"time"
)

// FileRecord — запись о файле. Единственный владелец StoragePath:
// один блоб принадлежит ровно одной записи, конфликтов на уровне
// блобов не бывает.
type FileRecord struct {
	// Code — публичный 6-символьный код файла (uppercase).
	// Уникален среди всех живых записей.
	Code string

	// OriginalName — оригинальное имя файла при загрузке
	OriginalName string

	// StoragePath — имя блоба на диске (относительно SB_DATA_DIR).
	// Генерируется случайно, из кода не выводится.
	StoragePath string

	// ContentType — MIME-тип файла
	ContentType string

	// Size — размер файла в байтах
	Size int64

	// CreatedAt — время загрузки (UTC). Устанавливается один раз,
	// не изменяется; база для вычисления истечения.
	CreatedAt time.Time

	// PasswordHash — bcrypt-хэш пароля. Пустая строка = доступ без пароля.
	PasswordHash string

	// MaxDownloads — лимит скачиваний. nil = без лимита.
	MaxDownloads *int

	// DownloadCount — количество скачиваний. Монотонно растёт,
	// изменяется только через Registry.RecordDownloadAndMaybeExpire.
	DownloadCount int

	// NotifyAddress — адрес для уведомлений (опционально).
	// Не интерпретируется, передаётся в Notifier как есть.
	NotifyAddress string
}

// IsProtected возвращает true, если доступ к файлу защищён паролем.
func (r *FileRecord) IsProtected() bool {
	return r.PasswordHash != ""
}

// IsExpired проверяет, истёк ли срок жизни записи: now - CreatedAt > ttl.
func (r *FileRecord) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) > ttl
}

// ExpiresAt возвращает момент истечения записи.
func (r *FileRecord) ExpiresAt(ttl time.Duration) time.Time {
	return r.CreatedAt.Add(ttl)
}
