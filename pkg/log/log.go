package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/env"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}

	level, err := logrus.ParseLevel(env.GetEnvStringOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Optional file output with rotation alongside stdout
	if logFile := env.GetEnvStringOrDefault("LOG_FILE", ""); logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    env.GetEnvIntOrDefault("LOG_MAX_SIZE_MB", 100),
				MaxBackups: env.GetEnvIntOrDefault("LOG_MAX_BACKUPS", 5),
				MaxAge:     env.GetEnvIntOrDefault("LOG_MAX_AGE_DAYS", 30),
				Compress:   true,
			}
			logger.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
		}
	}
}

func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	return logger.WithFields(logrus.Fields{
		"remote_ip": c.IP(),
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}
