package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ugc-forge/app/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap.Logger with sugared helpers.
type Logger struct {
	*zap.Logger
	sugar      *zap.SugaredLogger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New builds a logger from the log section of the config.
func New(cfg config.LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	if cfg.Output != "file" {
		core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
		return wrap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	}

	logDir := cfg.Dir
	if logDir == "" {
		logDir = "data/logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic("create log dir: " + err.Error())
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, time.Now().Format("2006-01-02")+".log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), level)
	if level == zapcore.DebugLevel {
		// debug runs also echo to the console
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stdout), level)
		core = zapcore.NewTee(core, consoleCore)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := wrap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	l.cancelFunc = cancel

	l.wg.Add(1)
	go l.dailyRotateRoutine(ctx, rotator, logDir)

	return l
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{Logger: z, sugar: z.Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// dailyRotateRoutine switches the log file name at midnight.
func (l *Logger) dailyRotateRoutine(ctx context.Context, rotator *lumberjack.Logger, logDir string) {
	defer l.wg.Done()

	for {
		now := time.Now()
		next := now.AddDate(0, 0, 1)
		next = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now) + time.Second):
			rotator.Filename = filepath.Join(logDir, next.Format("2006-01-02")+".log")
			// the next write reopens under the new name
			_ = rotator.Close()
		}
	}
}

// Close stops the rotation routine and flushes buffered entries.
func (l *Logger) Close() error {
	if l.cancelFunc != nil {
		l.cancelFunc()
		l.wg.Wait()
	}
	return l.Logger.Sync()
}

func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return wrap(l.Logger.With(fields...))
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.sugar.Fatalf(template, args...)
}

func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
