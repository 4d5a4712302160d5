package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/epicollect5/epicollect5-server-sub003/internal/config"
)

// New builds a JSON logger writing to out, and also to a rotated file when
// cfg.File is set. The returned closer releases the file.
func New(cfg *config.LogConfig, out io.Writer) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: levelFromString(cfg.Level)}

	if cfg.File == "" {
		return slog.New(slog.NewJSONHandler(out, opts)), io.NopCloser(nil)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.FileMaxSizeMB, // megabytes
		MaxAge:     cfg.FileMaxAgeDays,
		MaxBackups: cfg.FileMaxBackups,
		Compress:   cfg.Compress,
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(out, file), opts)), file
}

// Setup installs the logger from cfg as the slog default, writing to stdout.
func Setup(cfg *config.LogConfig) io.Closer {
	logger, closer := New(cfg, os.Stdout)
	slog.SetDefault(logger)
	return closer
}

func levelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
