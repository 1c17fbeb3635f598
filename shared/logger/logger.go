package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Init builds the service logger writing JSON to stdout.
func Init(serviceName, level string) *logrus.Logger {
	return New(serviceName, level, os.Stdout)
}

// New builds a structured logger that stamps every entry with serviceName.
// An unknown level falls back to info.
func New(serviceName, level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	logger.AddHook(serviceHook{service: serviceName})
	return logger
}

// WithRequestID returns an entry tagged with requestID, if any.
func WithRequestID(logger *logrus.Logger, requestID string) *logrus.Entry {
	if requestID == "" {
		return logrus.NewEntry(logger)
	}
	return logger.WithField("request_id", requestID)
}

type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}
