// Пакет notify — уведомления о событиях жизненного цикла файла.
// Семантика fire-and-forget: путь запроса никогда не ждёт завершения
// доставки и не зависит от её результата, ошибки видны только в логах.
package notify

import (
	"context"
	"log/slog"
)

// EventKind — тип события жизненного цикла.
type EventKind string

const (
	// EventUploaded — файл загружен, код выдан
	EventUploaded EventKind = "uploaded"
	// EventDownloaded — файл скачан, запись жива
	EventDownloaded EventKind = "downloaded"
	// EventBurned — файл скачан и уничтожен (лимит достигнут)
	EventBurned EventKind = "burned"
)

// Event — уведомление о событии.
type Event struct {
	Kind         EventKind
	Code         string
	OriginalName string
	// Address — контакт получателя из записи. Не интерпретируется.
	Address string
}

// Notifier — доставка уведомлений. Реальная доставка (email) — внешний
// коллаборатор, подключается этой же сигнатурой.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier — реализация, пишущая события в лог.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт лог-нотификатор.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Notify пишет событие в лог.
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.logger.Info("Уведомление",
		slog.String("kind", string(ev.Kind)),
		slog.String("code", ev.Code),
		slog.String("filename", ev.OriginalName),
		slog.String("address", ev.Address),
	)
	return nil
}

// Dispatch отправляет уведомление в отдельной горутине. Ничего не
// возвращает: ошибка доставки логируется и никогда не влияет на успех
// загрузки или скачивания. События без адреса не отправляются.
func Dispatch(n Notifier, logger *slog.Logger, ev Event) {
	if n == nil || ev.Address == "" {
		return
	}

	go func() {
		if err := n.Notify(context.Background(), ev); err != nil {
			logger.Error("Ошибка доставки уведомления",
				slog.String("kind", string(ev.Kind)),
				slog.String("code", ev.Code),
				slog.String("error", err.Error()),
			)
		}
	}()
}
