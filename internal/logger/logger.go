package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log доступен сразу, до вызова Init, чтобы пакеты можно было использовать в тестах.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// JSON для production, текст включается через SetTextFormatter
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// Silence отключает вывод логов (тесты, CLI с --quiet).
func Silence() {
	Log.SetOutput(io.Discard)
}
