package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Logger
// --------------------------------------------------------------------------

// dLockLogger implements dragonboat's logger.ILogger and writes lines of the
// form "LEVEL | name | message". The level can change while other goroutines log.
type dLockLogger struct {
	name   string
	level  atomic.Int32
	logger *log.Logger
}

func (l *dLockLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *dLockLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, "DEBUG", format, args)
}

func (l *dLockLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, "INFO", format, args)
}

func (l *dLockLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, "WARN", format, args)
}

func (l *dLockLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, "ERROR", format, args)
}

func (l *dLockLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logf(logger.CRITICAL, "PANIC", "%s", []interface{}{msg})
	panic(msg)
}

func (l *dLockLogger) logf(level logger.LogLevel, tag string, format string, args []interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	l.logger.Printf("%-5s | %-15s | %s", tag, l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements dragonboat's logger.Factory.
// Log lines go to stderr, stdout is reserved for command output (e.g. lock tokens).
func CreateLogger(pkgName string) logger.ILogger {
	stdLogger := log.New(os.Stderr, "", log.Ldate|log.Ltime)

	l := &dLockLogger{name: pkgName, logger: stdLogger}
	l.SetLevel(logger.INFO)
	return l
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// raftLoggers are the loggers used inside dragonboat
var raftLoggers = []string{"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb", "settings", "config"}

// appLoggers are the loggers of this module
var appLoggers = []string{"store", "lockmgr", "rpc", "transport/rpc", "cli"}

var factoryOnce sync.Once

// InitLoggers installs the custom logger factory and sets the level of all loggers.
// Dragonboat's own loggers only report warnings and errors unless debug is requested.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })

	raftLevel := lvl
	if lvl > logger.WARNING && lvl != logger.DEBUG {
		raftLevel = logger.WARNING
	}
	for _, name := range raftLoggers {
		logger.GetLogger(name).SetLevel(raftLevel)
	}
	for _, name := range appLoggers {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
