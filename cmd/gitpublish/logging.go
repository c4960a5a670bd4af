package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
)

// newLogger builds the process logger. Records go to a rotating file when
// cfg.File is set; otherwise to w, as text on a terminal and JSON elsewhere.
// The returned closer releases the log file.
func newLogger(w io.Writer, cfg logConfig) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		if rotating.MaxSize == 0 {
			rotating.MaxSize = defaultLogMaxSizeMB
		}
		if rotating.MaxBackups == 0 {
			rotating.MaxBackups = defaultLogMaxBackups
		}
		return slog.New(slog.NewJSONHandler(rotating, opts)), rotating, nil
	}

	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts)), nopCloser{}, nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nopCloser{}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
