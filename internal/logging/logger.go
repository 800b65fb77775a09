// Package logging builds the application zap logger: a console core on
// stderr and, when a log directory is configured, a rotating JSON file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultName  = "pacenotes"
	maxSizeMB    = 10
	maxBackups   = 3
	maxAgeDays   = 14
	fileMode     = 0o755
	defaultLevel = zapcore.InfoLevel
)

type options struct {
	name    string
	dir     string
	level   zapcore.Level
	console bool
}

type Option func(*options)

// Name sets the logger name and the log file stem.
func Name(name string) Option {
	return func(o *options) {
		if strings.TrimSpace(name) != "" {
			o.name = strings.TrimSpace(name)
		}
	}
}

// Path enables the rotating file sink in dir.
func Path(dir string) Option {
	return func(o *options) { o.dir = strings.TrimSpace(dir) }
}

// Level sets the minimum level. Unknown names fall back to info.
func Level(level string) Option {
	return func(o *options) { o.level = ParseLevel(level) }
}

// Console toggles the stderr sink.
func Console(enabled bool) Option {
	return func(o *options) { o.console = enabled }
}

func ParseLevel(level string) zapcore.Level {
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return defaultLevel
	}
	return parsed
}

// FilePath returns the log file used for dir and name.
func FilePath(dir string, name string) string {
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(dir, name+".log")
}

// NewApplicationLogger returns the logger and a sync func to call on exit.
func NewApplicationLogger(opts ...Option) (*zap.Logger, func(), error) {
	o := options{name: DefaultName, level: defaultLevel, console: true}
	for _, opt := range opts {
		opt(&o)
	}

	var cores []zapcore.Core
	if o.console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), o.level))
	}

	var rotator *lumberjack.Logger
	if o.dir != "" {
		if err := os.MkdirAll(o.dir, fileMode); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   FilePath(o.dir, o.name),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), o.level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(o.name)
	sync := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger, sync, nil
}
