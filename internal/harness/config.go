package harness

import (
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	Command       []string      `koanf:"command"`
	Env           []string      `koanf:"env"`
	Dir           string        `koanf:"dir"`
	ReadyURL      string        `koanf:"ready-url"`
	ReadyTimeout  time.Duration `koanf:"ready-timeout"`
	ReadyInterval time.Duration `koanf:"ready-interval"`
	StopTimeout   time.Duration `koanf:"stop-timeout"`
	ConsoleLog    ConsoleLog    `koanf:"console-log"`
}

// ConsoleLog mirrors the process output into a size-rotated file.
type ConsoleLog struct {
	File       string `koanf:"file"`
	MaxSize    int    `koanf:"max-size"`
	MaxBackups int    `koanf:"max-backups"`
}

var ConfigDefault = Config{
	Command:       nil,
	Env:           nil,
	Dir:           "",
	ReadyURL:      "",
	ReadyTimeout:  30 * time.Second,
	ReadyInterval: time.Second,
	StopTimeout:   5 * time.Second,
	ConsoleLog:    ConsoleLogDefault,
}

var ConsoleLogDefault = ConsoleLog{
	File:       "",
	MaxSize:    1,
	MaxBackups: 10,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.StringSlice(prefix+".command", ConfigDefault.Command, "external server command and arguments (empty = server already running)")
	f.StringSlice(prefix+".env", ConfigDefault.Env, "extra KEY=VALUE environment for the server")
	f.String(prefix+".dir", ConfigDefault.Dir, "working directory of the server")
	f.String(prefix+".ready-url", ConfigDefault.ReadyURL, "URL polled until it answers 2xx")
	f.Duration(prefix+".ready-timeout", ConfigDefault.ReadyTimeout, "how long to wait for the server to become ready")
	f.Duration(prefix+".ready-interval", ConfigDefault.ReadyInterval, "delay between readiness polls")
	f.Duration(prefix+".stop-timeout", ConfigDefault.StopTimeout, "grace period between SIGTERM and SIGKILL")
	f.String(prefix+".console-log.file", ConsoleLogDefault.File, "file receiving the server console output (empty = none)")
	f.Int(prefix+".console-log.max-size", ConsoleLogDefault.MaxSize, "console log size in megabytes before rotation")
	f.Int(prefix+".console-log.max-backups", ConsoleLogDefault.MaxBackups, "rotated console logs to keep")
}
