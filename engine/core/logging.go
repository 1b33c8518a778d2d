package core

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

// LogLevel is the textual log level accepted by the configuration file.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "vkframe 🔺 ",
					CallerOffset:    1,
				})
				l.SetLevel(log.InfoLevel)
				singleton = &logger{l}
			})
	}
	return singleton
}

// ParseLogLevel validates a level name coming from configuration.
func ParseLogLevel(level string) (LogLevel, error) {
	lvl := LogLevel(strings.ToLower(strings.TrimSpace(level)))
	switch lvl {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return lvl, nil
	case "":
		return LogLevelInfo, nil
	}
	return "", errors.Newf("unknown log level '%s'", level)
}

// SetLogLevel changes the level of the engine logger.
func SetLogLevel(level LogLevel) error {
	l, err := log.ParseLevel(string(level))
	if err != nil {
		return errors.Wrapf(err, "failed to set log level '%s'", level)
	}
	getLogger().SetLevel(l)
	return nil
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
