// Package logging installs the process-wide geth logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Type  string     `koanf:"type"`
	Level string     `koanf:"level"`
	File  FileConfig `koanf:"file"`
}

type FileConfig struct {
	Enable     bool   `koanf:"enable"`
	Path       string `koanf:"path"`
	MaxSize    int    `koanf:"max-size"`
	MaxBackups int    `koanf:"max-backups"`
	Compress   bool   `koanf:"compress"`
}

var ConfigDefault = Config{
	Type:  "plaintext",
	Level: "info",
	File:  FileConfigDefault,
}

var FileConfigDefault = FileConfig{
	Enable:     false,
	Path:       "merklefetch.log",
	MaxSize:    5,
	MaxBackups: 20,
	Compress:   true,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".type", ConfigDefault.Type, "log output format: plaintext, json or logfmt")
	f.String(prefix+".level", ConfigDefault.Level, "log level: crit, error, warn, info, debug or trace")
	f.Bool(prefix+".file.enable", FileConfigDefault.Enable, "also write logs to a rotated file")
	f.String(prefix+".file.path", FileConfigDefault.Path, "path to log file")
	f.Int(prefix+".file.max-size", FileConfigDefault.MaxSize, "log file size in Mb that triggers rotation")
	f.Int(prefix+".file.max-backups", FileConfigDefault.MaxBackups, "rotated log files to retain (0 = no limit)")
	f.Bool(prefix+".file.compress", FileConfigDefault.Compress, "compress rotated log files")
}

var levels = map[string]slog.Level{
	"crit":  log.LevelCrit,
	"error": log.LevelError,
	"warn":  log.LevelWarn,
	"info":  log.LevelInfo,
	"debug": log.LevelDebug,
	"trace": log.LevelTrace,
}

func ParseLevel(s string) (slog.Level, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// colorable reports whether w is a terminal that can take escape codes.
func colorable(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func NewHandler(logType string, w io.Writer) (slog.Handler, error) {
	switch strings.ToLower(logType) {
	case "plaintext", "":
		return log.NewTerminalHandler(w, colorable(w)), nil
	case "json":
		return log.JSONHandler(w), nil
	case "logfmt":
		return log.LogfmtHandler(w), nil
	}
	return nil, fmt.Errorf("invalid log type %q", logType)
}

var (
	fileMu     sync.Mutex
	fileWriter *lumberjack.Logger
)

// Init replaces the default logger. Output goes to w, plus the rotated file
// when enabled. A file opened by an earlier Init is closed.
func Init(cfg Config, w io.Writer) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	fileMu.Lock()
	defer fileMu.Unlock()
	if fileWriter != nil {
		if err := fileWriter.Close(); err != nil {
			return fmt.Errorf("closing log file: %w", err)
		}
		fileWriter = nil
	}
	if w == nil {
		w = os.Stderr
	}
	out := w
	if cfg.File.Enable {
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(w, fileWriter)
	}
	handler, err := NewHandler(cfg.Type, out)
	if err != nil {
		return err
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(lvl)
	log.SetDefault(log.NewLogger(glogger))
	return nil
}
