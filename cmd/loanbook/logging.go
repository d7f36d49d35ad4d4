package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger logs to stderr, colored on a terminal, or to a rotated file when
// one is configured. The returned func closes the file.
func newLogger(cfg LoggerConfig) (*slog.Logger, func() error) {
	opts := &tint.Options{
		Level:      parseLevel(cfg.Level),
		TimeFormat: "15:04:05.000",
	}
	if cfg.FilePath != "" {
		w := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			LocalTime:  true,
			Compress:   cfg.Compress,
		}
		opts.NoColor = true
		opts.TimeFormat = time.DateTime
		return slog.New(tint.NewHandler(w, opts)), w.Close
	}
	opts.NoColor = !isatty.IsTerminal(os.Stderr.Fd())
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), opts)), func() error { return nil }
}
