// Package logger wraps a process-wide logrus logger. Request-scoped fields
// (trace id, user id) travel in the context and are attached by WithContext.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	userIDKey  contextKey = "user_id"
)

const jsonTimestamp = "2006-01-02T15:04:05.000Z07:00"

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: jsonTimestamp})
	return l
}

// Setup applies the level and picks a formatter: text for "development",
// bare text for "test", JSON otherwise. Unknown levels fall back to info.
func Setup(level, mode string) {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		parsedLevel = logrus.InfoLevel
	}
	log.SetLevel(parsedLevel)

	switch mode {
	case "development":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	case "test":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: jsonTimestamp})
	}
}

func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func Level() logrus.Level {
	return log.GetLevel()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) int {
	userID, _ := ctx.Value(userIDKey).(int)
	return userID
}

// WithContext returns an entry carrying the trace and user ids stored in ctx.
func WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	if userID := UserIDFromContext(ctx); userID != 0 {
		fields["user_id"] = userID
	}
	return log.WithFields(fields)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return log.WithFields(fields)
}

// WithService tags an entry with a billed cloud service such as "EC2".
func WithService(service string) *logrus.Entry {
	return log.WithField("service", service)
}

func WithComponent(component string) *logrus.Entry {
	return log.WithField("component", component)
}

func WithError(err error) *logrus.Entry {
	return log.WithError(err)
}

func Debug(msg string) { log.Debug(msg) }
func Info(msg string)  { log.Info(msg) }
func Warn(msg string)  { log.Warn(msg) }
func Error(msg string) { log.Error(msg) }

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
