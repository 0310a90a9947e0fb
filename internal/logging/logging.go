package logging

import (
	"content-wiki/internal/config"
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
	"os"
	"runtime"
	"strings"
	"time"
)

// Logger writes leveled messages with the key-values produced by the GetLogType helpers.
type Logger interface {
	LogErrorf(keyVal []any, format string, args ...any)
	LogError(keyVal []any, args ...any)
	LogWarnf(keyVal []any, format string, args ...any)
	LogWarn(keyVal []any, args ...any)
	LogInfof(keyVal []any, format string, args ...any)
	LogInfo(keyVal []any, args ...any)
	LogDebugf(keyVal []any, format string, args ...any)
	LogDebug(keyVal []any, args ...any)
}

type DefaultLogger struct {
	Logger *zap.SugaredLogger
}

// ensure DefaultLogger implements Logger
var _ Logger = &DefaultLogger{}

type NullLogger struct{}

// ensure NullLogger implements Logger
var _ Logger = &NullLogger{}

// sink is one destination of the application log.
type sink struct {
	encoder zapcore.Encoder
	writer  zapcore.WriteSyncer
	level   zapcore.LevelEnabler
}

func encoderConfig(timeEncoder zapcore.TimeEncoder, levelEncoder zapcore.LevelEncoder) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = timeEncoder
	cfg.EncodeLevel = levelEncoder
	return cfg
}

// applicationSinks returns the console sink and, with a configured log file, the JSON file sink.
// The console then only shows ConsoleLogLevel and above.
func applicationSinks(c *config.Configuration) []sink {
	console := sink{
		encoder: zapcore.NewConsoleEncoder(encoderConfig(zapcore.RFC3339TimeEncoder, zapcore.CapitalColorLevelEncoder)),
		writer:  zapcore.Lock(os.Stderr),
		level:   c.Logging.Level,
	}
	if len(c.Logging.File) == 0 {
		return []sink{console}
	}

	console.level = c.Logging.ConsoleLogLevel
	file := sink{
		encoder: zapcore.NewJSONEncoder(encoderConfig(zapcore.RFC3339NanoTimeEncoder, zapcore.CapitalLevelEncoder)),
		writer:  rotatingWriteSyncer(c, c.Logging.File),
		level:   c.Logging.Level,
	}
	return []sink{console, file}
}

func newCore(sinks ...sink) zapcore.Core {
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, s := range sinks {
		cores = append(cores, zapcore.NewCore(s.encoder, s.writer, s.level))
	}
	return zapcore.NewTee(cores...)
}

// InitLogging creates the application logger and installs it as the zap global.
// With logAlerts enabled, error entries carry a stack trace.
func InitLogging(c *config.Configuration) *DefaultLogger {
	options := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}
	if c.Logging.LogAlerts {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zapLogger := zap.New(newCore(applicationSinks(c)...), options...)
	zap.ReplaceGlobals(zapLogger)

	return &DefaultLogger{Logger: zapLogger.Sugar()}
}

// InitGinLogger creates the access logger. Without a configured access log file
// the access log is written as JSON to stdout.
func InitGinLogger(c *config.Configuration) *zap.Logger {
	return zap.New(newCore(sink{
		encoder: zapcore.NewJSONEncoder(encoderConfig(zapcore.RFC3339NanoTimeEncoder, zapcore.CapitalLevelEncoder)),
		writer:  rotatingWriteSyncer(c, c.Logging.HttpAccessFile),
		level:   c.Logging.Level,
	}))
}

// InitGormLogger creates the SQL logger handed to gorm.
// Missing records are an expected outcome for article lookups and are not logged as errors.
func InitGormLogger(c *config.Configuration) *zapgorm2.Logger {
	zapGormLogger := zap.New(newCore(sink{
		encoder: zapcore.NewJSONEncoder(encoderConfig(zapcore.RFC3339TimeEncoder, zapcore.CapitalLevelEncoder)),
		writer:  rotatingWriteSyncer(c, c.Logging.DbLogFile),
		level:   c.Logging.Level,
	}))

	gormLogger := zapgorm2.New(zapGormLogger)
	gormLogger.LogLevel = gormlogger.Info
	gormLogger.SlowThreshold = 200 * time.Millisecond
	gormLogger.IgnoreRecordNotFoundError = true
	gormLogger.SetAsDefault()

	return &gormLogger
}

func rotatingWriteSyncer(c *config.Configuration, filename string) zapcore.WriteSyncer {
	if len(filename) == 0 {
		return zapcore.Lock(os.Stdout)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    c.Logging.MaxSize, // megabytes
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge, // days
	})
}

// RecoverPanic logs a recovered panic of a background task such as the startup import.
// It must be deferred directly.
func (d DefaultLogger) RecoverPanic(task string) {
	if err := recover(); err != nil {
		d.Logger.Errorw(fmt.Sprintf("recovered panic in %s: %v", task, err),
			"subType", "panic", "task", task, "location", panicLocation())
	}
}

// panicLocation names the first frame outside the runtime, which is the function that panicked.
func panicLocation() string {
	var pc [16]uintptr
	frames := runtime.CallersFrames(pc[:runtime.Callers(3, pc[:])])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			if frame.Function == "" {
				return fmt.Sprintf("%s:%d", frame.File, frame.Line)
			}
			return fmt.Sprintf("%s:%d", frame.Function, frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

func (d DefaultLogger) log(level zapcore.Level, keyVal []any, msg string) {
	switch level {
	case zapcore.ErrorLevel:
		d.Logger.Errorw(msg, keyVal...)
	case zapcore.WarnLevel:
		d.Logger.Warnw(msg, keyVal...)
	case zapcore.InfoLevel:
		d.Logger.Infow(msg, keyVal...)
	default:
		d.Logger.Debugw(msg, keyVal...)
	}
}

func (d DefaultLogger) LogErrorf(keyVal []any, format string, args ...any) {
	d.log(zapcore.ErrorLevel, keyVal, fmt.Sprintf(format, args...))
}

func (d DefaultLogger) LogError(keyVal []any, args ...any) {
	d.log(zapcore.ErrorLevel, keyVal, fmt.Sprint(args...))
}

func (d DefaultLogger) LogWarnf(keyVal []any, format string, args ...any) {
	d.log(zapcore.WarnLevel, keyVal, fmt.Sprintf(format, args...))
}

func (d DefaultLogger) LogWarn(keyVal []any, args ...any) {
	d.log(zapcore.WarnLevel, keyVal, fmt.Sprint(args...))
}

func (d DefaultLogger) LogInfof(keyVal []any, format string, args ...any) {
	d.log(zapcore.InfoLevel, keyVal, fmt.Sprintf(format, args...))
}

func (d DefaultLogger) LogInfo(keyVal []any, args ...any) {
	d.log(zapcore.InfoLevel, keyVal, fmt.Sprint(args...))
}

func (d DefaultLogger) LogDebugf(keyVal []any, format string, args ...any) {
	d.log(zapcore.DebugLevel, keyVal, fmt.Sprintf(format, args...))
}

func (d DefaultLogger) LogDebug(keyVal []any, args ...any) {
	d.log(zapcore.DebugLevel, keyVal, fmt.Sprint(args...))
}

func (NullLogger) LogErrorf([]any, string, ...any) {}
func (NullLogger) LogError([]any, ...any)          {}
func (NullLogger) LogWarnf([]any, string, ...any)  {}
func (NullLogger) LogWarn([]any, ...any)           {}
func (NullLogger) LogInfof([]any, string, ...any)  {}
func (NullLogger) LogInfo([]any, ...any)           {}
func (NullLogger) LogDebugf([]any, string, ...any) {}
func (NullLogger) LogDebug([]any, ...any)          {}
