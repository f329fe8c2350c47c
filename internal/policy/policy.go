// Пакет policy — проверка доступа к записи.
// Порядок проверок фиксирован: существование → пароль → лимит
// скачиваний. Неверный пароль бесплатен: счётчик скачиваний не
// трогается, попытка не расходует лимит.
package policy

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/arturkryukov/sharebox/internal/domain/model"
)

// ErrForbidden — пароль не подошёл.
var ErrForbidden = errors.New("неверный пароль")

// ErrGone — лимит скачиваний исчерпан. Отличается от "не найдено":
// код существовал, но файл уже уничтожен.
var ErrGone = errors.New("файл уже скачан и уничтожен")

// HashPassword возвращает bcrypt-хэш пароля. Пустой пароль даёт пустой
// хэш — доступ без пароля. Plaintext нигде не сохраняется.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// Authorize проверяет пароль. Успех, если запись не защищена или
// пароль совпал; иначе ErrForbidden. Вызывается до отдачи байтов
// блоба и до инкремента счётчика скачиваний.
func Authorize(rec *model.FileRecord, supplied string) error {
	if rec.PasswordHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(supplied)); err != nil {
		return ErrForbidden
	}
	return nil
}

// CheckQuota возвращает ErrGone, если лимит скачиваний записи уже
// исчерпан. При атомарном RecordDownloadAndMaybeExpire такая запись в
// реестре не живёт — ветка защитная, сохраняет поверхность 410.
func CheckQuota(rec *model.FileRecord) error {
	if rec.MaxDownloads != nil && rec.DownloadCount >= *rec.MaxDownloads {
		return ErrGone
	}
	return nil
}
