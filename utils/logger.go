package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu   sync.RWMutex
	logger  = newLogger(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	logFile *os.File
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetupLogger задает уровень логирования и, если dir не пуст, дублирует
// вывод в dir/app.log в формате JSON
func SetupLogger(dir, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	var file *os.File
	if dir != "" {
		// Создаем директорию для логов, если она не существует
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("не удалось создать директорию логов: %v", err)
		}
		file, err = os.OpenFile(filepath.Join(dir, "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("не удалось открыть файл логов: %v", err)
		}
		out = zerolog.MultiLevelWriter(out, file)
	}

	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	logger = newLogger(out).Level(lvl)
	return nil
}

// SetOutput перенаправляет логи в w (используется в тестах)
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = newLogger(w).Level(logger.GetLevel())
}

// Logger возвращает текущий логгер для структурированных записей
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// LogInfo логирует информационное сообщение
func LogInfo(format string, v ...interface{}) {
	l := Logger()
	l.Info().Str("caller", caller()).Msgf(format, v...)
}

// LogError логирует сообщение об ошибке
func LogError(format string, v ...interface{}) {
	l := Logger()
	l.Error().Str("caller", caller()).Msgf(format, v...)
}

// LogDebug логирует отладочное сообщение
func LogDebug(format string, v ...interface{}) {
	l := Logger()
	l.Debug().Str("caller", caller()).Msgf(format, v...)
}

// LogOperation логирует операцию леджера и учитывает ее в метриках
func LogOperation(operation string, startTime time.Time, err error) {
	duration := time.Since(startTime)
	GetMetrics().RecordOperation(operation, duration, err)

	l := Logger()
	if err != nil {
		l.Error().Str("operation", operation).Dur("duration", duration).Err(err).Msg("операция завершилась ошибкой")
	} else {
		l.Info().Str("operation", operation).Dur("duration", duration).Msg("операция выполнена")
	}
}
