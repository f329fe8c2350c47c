// Пакет config — загрузка и валидация конфигурации Sharebox
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Sharebox.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории хранения блобов
	DataDir string
	// Время жизни записи (SB_TTL_SECONDS)
	TTL time.Duration
	// Период запуска Reaper (SB_SWEEP_INTERVAL_SECONDS)
	SweepInterval time.Duration
	// Максимальный размер загрузки в байтах
	MaxUploadBytes int64
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Путь к TLS сертификату (опционально, вместе с TLSKey)
	TLSCert string
	// Путь к TLS приватному ключу (опционально, вместе с TLSCert)
	TLSKey string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// SB_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("SB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SB_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("SB_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// SB_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("SB_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// SB_TTL_SECONDS — время жизни записи (по умолчанию 3600 = 1 час)
	ttlSeconds, err := getEnvInt("SB_TTL_SECONDS", 3600)
	if err != nil {
		return nil, fmt.Errorf("SB_TTL_SECONDS: %w", err)
	}
	if ttlSeconds <= 0 {
		return nil, fmt.Errorf("SB_TTL_SECONDS: значение должно быть положительным, получено %d", ttlSeconds)
	}
	cfg.TTL = time.Duration(ttlSeconds) * time.Second

	// SB_SWEEP_INTERVAL_SECONDS — период Reaper (по умолчанию 60)
	sweepSeconds, err := getEnvInt("SB_SWEEP_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("SB_SWEEP_INTERVAL_SECONDS: %w", err)
	}
	if sweepSeconds <= 0 {
		return nil, fmt.Errorf("SB_SWEEP_INTERVAL_SECONDS: значение должно быть положительным, получено %d", sweepSeconds)
	}
	cfg.SweepInterval = time.Duration(sweepSeconds) * time.Second

	// SB_MAX_UPLOAD_BYTES — максимальный размер загрузки (по умолчанию 100 MB)
	maxUpload, err := getEnvInt64("SB_MAX_UPLOAD_BYTES", 104857600)
	if err != nil {
		return nil, fmt.Errorf("SB_MAX_UPLOAD_BYTES: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("SB_MAX_UPLOAD_BYTES: значение должно быть положительным, получено %d", maxUpload)
	}
	cfg.MaxUploadBytes = maxUpload

	// SB_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SB_LOG_LEVEL: %w", err)
	}

	// SB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// SB_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SB_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SB_SHUTDOWN_TIMEOUT: %w", err)
	}

	// SB_TLS_CERT / SB_TLS_KEY — опциональная пара
	cfg.TLSCert = getEnvDefault("SB_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("SB_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("SB_TLS_CERT и SB_TLS_KEY должны быть заданы вместе")
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
