// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arturkryukov/sharebox/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// RecordCounter — интерфейс для отчёта о количестве живых записей.
type RecordCounter interface {
	Count() int
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — путь к директории блобов (для проверки FS)
	dataDir string
	// reg — реестр, для отчёта о количестве записей
	reg RecordCounter
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(dataDir string, reg RecordCounter) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		dataDir: dataDir,
		reg:     reg,
	}
}

// Live обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Зависимости не проверяет.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "sharebox",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// Ready обрабатывает GET /health/ready.
// Проверяет, что директория блобов доступна на запись.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "sharebox",
		"checks": map[string]any{
			"filesystem": fsCheck,
		},
		"records": h.reg.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет доступность директории блобов на запись:
// создаёт и удаляет probe-файл.
func (h *HealthHandler) checkFilesystem() map[string]string {
	probe := filepath.Join(h.dataDir, ".healthcheck")

	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return map[string]string{
			"status":  statusFail,
			"message": "директория данных недоступна на запись",
		}
	}
	_ = os.Remove(probe)

	return map[string]string{"status": "ok"}
}
