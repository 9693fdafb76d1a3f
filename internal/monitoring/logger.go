package monitoring

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

type Fields map[string]interface{}

func NewLogger() *Logger {
	logger := logrus.New()

	if os.Getenv("ENV") == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.SetLevel(logrus.DebugLevel)
	}

	return &Logger{logger}
}

func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}

// WithSubscription tags an entry with the record every lifecycle log line
// revolves around.
func (l *Logger) WithSubscription(id string) *logrus.Entry {
	return l.Logger.WithField("subscription_id", id)
}
