// Пакет registry — потокобезопасный in-memory реестр записей о файлах.
// Единственный источник истины: что существует, политика доступа и
// остаток лимита скачиваний. Вся мутация проходит через атомарные
// операции реестра — фоновый Reaper и HTTP-обработчики не трогают
// внутреннее состояние напрямую.
//
// Не персистентный: при рестарте процесса все живые записи теряются.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arturkryukov/sharebox/internal/code"
	"github.com/arturkryukov/sharebox/internal/domain/model"
)

// ErrNotFound — код отсутствует в реестре (неизвестен или уже вычищен).
var ErrNotFound = errors.New("запись не найдена")

// ErrExhausted — лимит скачиваний записи уже был исчерпан.
var ErrExhausted = errors.New("лимит скачиваний исчерпан")

// maxCreateAttempts — предел попыток генерации уникального кода.
// При keyspace 32^6 и реалистичном количестве живых записей коллизия
// на одной попытке маловероятна; предел страхует от сломанного
// генератора, а не от заполненного keyspace.
const maxCreateAttempts = 16

// Registry — реестр записей о файлах: code → FileRecord.
// Мутации на одном ключе взаимно исключены одним мьютексом;
// операции чтения конкурентны (sync.RWMutex).
type Registry struct {
	mu      sync.RWMutex
	records map[string]*model.FileRecord
	logger  *slog.Logger
}

// New создаёт пустой реестр.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		records: make(map[string]*model.FileRecord),
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Create генерирует свежий код, проверяет его уникальность среди живых
// записей и атомарно вставляет запись. Возвращает присвоенный код.
// Побочных эффектов кроме вставки нет; при коллизии генерация
// повторяется.
func (reg *Registry) Create(rec *model.FileRecord) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		c, err := code.New()
		if err != nil {
			return "", fmt.Errorf("ошибка генерации кода: %w", err)
		}
		if _, busy := reg.records[c]; busy {
			reg.logger.Warn("Коллизия кода при создании записи",
				slog.String("code", c),
				slog.Int("attempt", attempt+1),
			)
			continue
		}

		copied := *rec
		copied.Code = c
		reg.records[c] = &copied
		rec.Code = c
		return c, nil
	}

	return "", fmt.Errorf("не удалось сгенерировать уникальный код за %d попыток", maxCreateAttempts)
}

// Lookup возвращает копию записи по коду. Ввод нечувствителен к
// регистру. Состояние не изменяет. Возвращает ErrNotFound, если код
// неизвестен или запись уже вычищена.
func (reg *Registry) Lookup(c string) (*model.FileRecord, error) {
	c = code.Normalize(c)

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rec, ok := reg.records[c]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *rec
	return &copied, nil
}

// RecordDownloadAndMaybeExpire атомарно инкрементирует счётчик
// скачиваний. Если обновлённый счётчик достиг лимита, запись удаляется
// из реестра в той же критической секции: конкурентный Lookup никогда
// не увидит запись "обслужена и исчерпана, но жива". Возвращает копию
// записи и флаг — должен ли вызывающий код удалить блоб.
//
// Из N скачиваний, соревнующихся за последний разрешённый слот, флаг
// получает не более одного.
func (reg *Registry) RecordDownloadAndMaybeExpire(c string) (*model.FileRecord, bool, error) {
	c = code.Normalize(c)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	rec, ok := reg.records[c]
	if !ok {
		return nil, false, ErrNotFound
	}

	// Защитная ветка: запись с уже исчерпанным лимитом не должна жить
	// в реестре (удаление атомарно с достижением лимита). Если она
	// всё же есть — убираем, не трогая счётчик.
	if rec.MaxDownloads != nil && rec.DownloadCount >= *rec.MaxDownloads {
		delete(reg.records, c)
		copied := *rec
		return &copied, true, ErrExhausted
	}

	rec.DownloadCount++

	shouldDelete := rec.MaxDownloads != nil && rec.DownloadCount >= *rec.MaxDownloads
	if shouldDelete {
		delete(reg.records, c)
	}

	copied := *rec
	return &copied, shouldDelete, nil
}

// Delete удаляет запись по коду. Идемпотентно: повторный вызов и вызов
// для неизвестного кода безопасны. Возвращает true, если запись была.
func (reg *Registry) Delete(c string) bool {
	c = code.Normalize(c)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.records[c]; !ok {
		return false
	}
	delete(reg.records, c)
	return true
}

// Snapshot возвращает копии всех живых записей. Используется Reaper'ом.
// Только чтение: мутации блокируются лишь на время копирования.
func (reg *Registry) Snapshot() []*model.FileRecord {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*model.FileRecord, 0, len(reg.records))
	for _, rec := range reg.records {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}

// Count возвращает количество живых записей.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.records)
}
