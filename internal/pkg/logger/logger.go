package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*logrus.Logger
}

// FileConfig enables a rotating file sink alongside stdout.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(level, format string) *Logger {
	return NewWithFile(level, format, nil)
}

func NewWithFile(level, format string, file *FileConfig) *Logger {
	logger := logrus.New()

	var output io.Writer = os.Stdout
	if file != nil && file.Path != "" {
		output = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    orDefault(file.MaxSizeMB, 100),
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		})
	}
	logger.SetOutput(output)

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	return &Logger{Logger: logger}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.WithFields(parseFields(keysAndValues...)).Error(msg)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.WithFields(parseFields(keysAndValues...)).Warn(msg)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.WithFields(parseFields(keysAndValues...)).Info(msg)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.WithFields(parseFields(keysAndValues...)).Debug(msg)
}

func parseFields(keysAndValues ...interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			if key, ok := keysAndValues[i].(string); ok {
				fields[key] = keysAndValues[i+1]
			}
		}
	}
	return fields
}
