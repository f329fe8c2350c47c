// Пакет code — генерация публичных кодов файлов.
// Код: 6 символов из алфавита в 32 символа (цифры 2-9 и заглавные
// латинские буквы без визуально похожих 0, O, 1, I). Код не секрет —
// доступ защищают пароль и лимит скачиваний, — но keyspace 32^6
// делает коллизии при генерации маловероятными. Уникальность среди
// живых записей всё равно проверяет Registry перед вставкой.
package code

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet — 32 символа без визуально похожих глифов (0, O, 1, I исключены).
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Length — длина кода.
const Length = 6

// New генерирует случайный код.
// len(Alphabet) = 32 делит 256, поэтому остаток от деления байта
// распределён равномерно.
func New() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка чтения случайных байт: %w", err)
	}

	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}

// Normalize приводит код к каноничному виду (uppercase, без пробелов).
// Ввод нечувствителен к регистру.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsValid проверяет формат кода: ровно Length символов из Alphabet.
// Вход должен быть нормализован.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
