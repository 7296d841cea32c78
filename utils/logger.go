package utils

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/amirphl/Kaminari/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFlags are shared by every logger the service creates
const LogFlags = log.LstdFlags | log.Lmicroseconds | log.LUTC

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogWriter builds the writer described by cfg. File output rotates with lumberjack.
// name replaces the base name of cfg.FilePath so components can keep separate files
// (e.g. "scheduler" -> data/scheduler.log); an empty name keeps the configured path.
// The returned closer flushes the rotating file and must be closed on shutdown.
func NewLogWriter(cfg config.LoggingConfig, name string) (io.Writer, io.Closer) {
	if cfg.Output == "" || cfg.Output == "stdout" || cfg.FilePath == "" {
		return os.Stdout, nopCloser{}
	}

	path := cfg.FilePath
	if name != "" {
		path = filepath.Join(filepath.Dir(path), name+".log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logging: cannot create %s, falling back to stdout: %v", filepath.Dir(path), err)
		return os.Stdout, nopCloser{}
	}

	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if cfg.Output == "both" {
		return io.MultiWriter(os.Stdout, rotating), rotating
	}
	return rotating, rotating
}

// NewLogger returns a prefixed logger writing where cfg says
func NewLogger(cfg config.LoggingConfig, name string) (*log.Logger, io.Closer) {
	w, closer := NewLogWriter(cfg, name)
	prefix := ""
	if name != "" {
		prefix = strings.TrimSpace(name) + " "
	}
	return log.New(w, prefix, LogFlags), closer
}
