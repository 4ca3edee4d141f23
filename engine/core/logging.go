package core

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Tessera 🧩 ",
			})
			l.SetLevel(log.DebugLevel)
			singleton = &logger{l}
		})
	return singleton
}

// SetLogLevel changes the level of the engine logger. Unknown levels fall back to info.
func SetLogLevel(level LogLevel) {
	lvl, err := log.ParseLevel(strings.ToLower(string(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	getLogger().SetLevel(lvl)
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
