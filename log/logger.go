// Package log implements the structured logger of the messaging core.
// Events are built fluently and emitted as one JSON line per call:
//
//	log.Info().Str("transport", "tcp").Uint64("socket", id).Msg("socket accepted")
//
// The logger is pool-backed to keep the hot path allocation-free and can
// hot-reload its configuration through the config manager.
package log

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aoindustries/ao-messaging/config"
)

// Logger is the event-producing interface implemented by CoreLogger.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger atomic.Pointer[CoreLogger]

func init() {
	_defaultLogger.Store(NewLogger(nil))
}

// SetDefaultLogger replaces the package-level default logger.
func SetDefaultLogger(logger *CoreLogger) {
	_defaultLogger.Store(logger)
}

// Initialize loads the "logger" configuration through the given manager,
// installs a logger built from it as the default and registers the logger
// for hot reload.
func Initialize(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}
	cfg := &LogCfg{}
	if err := configManager.LoadConfig("logger", cfg); err != nil {
		return err
	}
	logger := NewLogger(cfg)
	configManager.AddChangeListener(logger)
	SetDefaultLogger(logger)
	return nil
}

// Package-level shortcuts on the default logger.

func Debug() *LogEvent { return _defaultLogger.Load().Debug() }
func Info() *LogEvent  { return _defaultLogger.Load().Info() }
func Warn() *LogEvent  { return _defaultLogger.Load().Warn() }
func Error() *LogEvent { return _defaultLogger.Load().Error() }
func Fatal() *LogEvent { return _defaultLogger.Load().Fatal() }

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.Load().AddAppender(appender)
}

// Refresh triggers a refresh on all appenders of the default logger.
func Refresh() {
	_defaultLogger.Load().Refresh()
}

// CoreLogger is the standard Logger implementation: level filtering,
// pooled events, pluggable appenders and config-manager hot reload.
type CoreLogger struct {
	mu                sync.RWMutex
	appenders         []LogAppender
	minLevel          atomic.Uint32
	enabledCallerInfo atomic.Bool
	eventPool         *sync.Pool
	callerCache       sync.Map
	currentConfig     *LogCfg
}

// NewLogger builds a CoreLogger from cfg; nil selects the defaults
// (info level, console output).
func NewLogger(cfg *LogCfg) *CoreLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &CoreLogger{currentConfig: cfg}
	logger.minLevel.Store(uint32(cfg.Level()))
	logger.enabledCallerInfo.Store(cfg.EnabledCallerInfo)
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	if cfg.FileAppender {
		logger.AddAppender(NewFileAppender(cfg))
	}
	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}
	return logger
}

// OnConfigChanged implements config.ConfigChangeListener for hot reload.
func (x *CoreLogger) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "logger" {
		return nil
	}
	newCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}

	x.minLevel.Store(uint32(newCfg.Level()))
	x.enabledCallerInfo.Store(newCfg.EnabledCallerInfo)

	x.mu.Lock()
	x.currentConfig = newCfg
	x.mu.Unlock()

	x.Refresh()
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (x *CoreLogger) GetConfigName() string {
	return "logger"
}

// GetCurrentConfig returns the configuration currently in effect.
func (x *CoreLogger) GetCurrentConfig() *LogCfg {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.currentConfig
}

func (x *CoreLogger) checkLevel(level Level) bool {
	return Level(x.minLevel.Load()) <= level
}

// AddAppender registers an additional output destination.
func (x *CoreLogger) AddAppender(appender LogAppender) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.appenders = append(x.appenders, appender)
}

// GetAppender returns the registered appenders.
func (x *CoreLogger) GetAppender() []LogAppender {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.appenders
}

// Refresh triggers a refresh on all registered appenders.
func (x *CoreLogger) Refresh() {
	for _, appender := range x.GetAppender() {
		appender.Refresh()
	}
}

// OnEventEnd writes a completed event to every appender and returns it to
// the pool. Fatal events panic after the line is written.
func (x *CoreLogger) OnEventEnd(e *LogEvent) {
	for _, appender := range x.GetAppender() {
		_, _ = appender.Write(e.buf.Bytes())
	}
	level := e.level
	x.eventPool.Put(e)
	if level == FatalLevel {
		panic("fatal log event")
	}
}

func (x *CoreLogger) Debug() *LogEvent { return x.log(DebugLevel) }
func (x *CoreLogger) Info() *LogEvent  { return x.log(InfoLevel) }
func (x *CoreLogger) Warn() *LogEvent  { return x.log(WarnLevel) }
func (x *CoreLogger) Error() *LogEvent { return x.log(ErrorLevel) }
func (x *CoreLogger) Fatal() *LogEvent { return x.log(FatalLevel) }

func (x *CoreLogger) log(level Level) *LogEvent {
	if !x.checkLevel(level) {
		return nil
	}

	e := x.eventPool.Get().(*LogEvent)
	e.Reset()
	e.level = level

	t := time.Now()
	e.Time("time", &t)
	e.Str("level", level.String())
	if x.enabledCallerInfo.Load() {
		e.Str("caller", x.getCallerInfo())
	}
	return e
}

// getCallerInfo resolves pkg/file.go:line for the log call site, cached
// per program counter.
func (x *CoreLogger) getCallerInfo() string {
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	if cached, found := x.callerCache.Load(pc); found {
		return cached.(string)
	}

	if idx := strings.LastIndexByte(file, '/'); idx > 0 {
		if idx2 := strings.LastIndexByte(file[:idx], '/'); idx2 >= 0 {
			file = file[idx2+1:]
		}
	}
	info := fmt.Sprintf("%s:%d", file, line)
	x.callerCache.Store(pc, info)
	return info
}
