package logging

import (
	"context"
	"os"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fastfinder/fastfinder/internal/config"
)

const (
	service = "fastfinder"
	nameKey = "component"
)

type loggerKey struct{}

// Config selects the level and the optional rotated JSON file sink.
type Config struct {
	Level      zapcore.Level
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	conf  = Config{Level: zapcore.InfoLevel}

	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
)

// SetConfig must run before the first DefaultLogger call to take the file
// sink into account; the level applies immediately.
func SetConfig(c *Config) {
	conf = *c
	level.SetLevel(c.Level)
}

// SetLevel changes the level of the default logger and everything derived from it.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// ParseConfig converts the log section of the configuration. Unknown levels
// fall back to info and are reported.
func ParseConfig(c *config.LoggingConfig) (*Config, error) {
	out := &Config{
		Level:      zapcore.InfoLevel,
		FilePath:   c.File,
		MaxSizeMB:  c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAge,
	}
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return out, errors.Wrapf(err, "parse level %q", c.Level)
	}
	out.Level = lvl
	return out, nil
}

func consoleEncoder() zapcore.Encoder {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.NameKey = nameKey
	ec.CallerKey = zapcore.OmitKey
	ec.StacktraceKey = zapcore.OmitKey
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func fileEncoder() zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.NameKey = nameKey
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(ec)
}

func newLogger(conf *Config, enabler zapcore.LevelEnabler) *zap.Logger {
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stdout), enabler),
	}

	if conf.FilePath != "" {
		sink := &lumberjack.Logger{
			Filename:   conf.FilePath,
			MaxSize:    orDefault(conf.MaxSizeMB, 50),
			MaxBackups: orDefault(conf.MaxBackups, 5),
			MaxAge:     orDefault(conf.MaxAgeDays, 30),
			Compress:   true,
		}
		file := zapcore.NewCore(fileEncoder(), zapcore.AddSync(sink), enabler)
		cores = append(cores, file.With([]zapcore.Field{zap.String("service", service)}))
	}

	return zap.New(zapcore.NewTee(cores...))
}

// NewLogger builds a standalone logger fixed at conf.Level.
func NewLogger(conf *Config) *zap.Logger {
	return newLogger(conf, zap.NewAtomicLevelAt(conf.Level))
}

func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = newLogger(&conf, level)
	})
	return defaultLogger
}

// Component returns the default logger named after a subsystem.
func Component(name string) *zap.Logger {
	return DefaultLogger().Named(name)
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
