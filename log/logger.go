package log

import (
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache

const loggerCacheExpiry = 6 * time.Hour

func init() {
	loggerCache = cache.New(loggerCacheExpiry, 10*time.Minute)
}

// AddContext permanently attaches key-value context to the logger for this
// request ID. Any future logging for the same ID includes it.
func AddContext(requestID string, keyvals ...interface{}) {
	_ = loggerCache.Add(requestID, kitlog.With(getLogger(requestID), keyvals...), loggerCacheExpiry)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(keyvals...)
}

// LogNoRequestID is for the rare places where no request ID is available.
// Use sparingly and put as much context as possible in the message.
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(keyvals...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(requestID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", err.Error())
	_ = errLogger.Log(keyvals...)
}

// Base returns the process-wide logfmt logger for components that carry
// their own context, like the HTTP request logger.
func Base() kitlog.Logger {
	return newLogger()
}

func getLogger(requestID string) kitlog.Logger {
	logger, found := loggerCache.Get(requestID)
	if found {
		return logger.(kitlog.Logger)
	}

	requestLogger := kitlog.With(newLogger(), "request_id", requestID)
	if err := loggerCache.Add(requestID, requestLogger, loggerCacheExpiry); err != nil {
		_ = requestLogger.Log("msg", "error adding logger to cache", "request_id", requestID)
	}
	return requestLogger
}

func newLogger() kitlog.Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	return kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
}
