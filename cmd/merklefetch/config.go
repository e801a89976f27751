package main

import (
	"fmt"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"merklefetch/internal/client"
	"merklefetch/internal/confighelpers"
	"merklefetch/internal/fetch"
	"merklefetch/internal/harness"
	"merklefetch/internal/logging"
	"merklefetch/internal/merkle"
)

type Config struct {
	Conf    confighelpers.ConfConfig `koanf:"conf"`
	Log     logging.Config           `koanf:"log"`
	Client  client.Config            `koanf:"client"`
	Fetch   fetch.Config             `koanf:"fetch"`
	Server  harness.Config           `koanf:"server"`
	Check   CheckConfig              `koanf:"check"`
	Version bool                     `koanf:"version"`
}

// CheckConfig selects a single piece to verify instead of fetching the
// whole file.
type CheckConfig struct {
	Root  string `koanf:"root"`
	Index int64  `koanf:"index"`
}

var ConfigDefault = Config{
	Conf:   confighelpers.ConfConfigDefault,
	Log:    logging.ConfigDefault,
	Client: client.ConfigDefault,
	Fetch:  fetch.ConfigDefault,
	Server: harness.ConfigDefault,
	Check:  CheckConfig{Root: "", Index: -1},
}

func ConfigAddOptions(f *flag.FlagSet) {
	confighelpers.ConfConfigAddOptions("conf", f)
	logging.ConfigAddOptions("log", f)
	client.ConfigAddOptions("client", f)
	fetch.ConfigAddOptions("fetch", f)
	harness.ConfigAddOptions("server", f)
	f.String("check.root", ConfigDefault.Check.Root, "root hash of the file to check (empty = first listed)")
	f.Int64("check.index", ConfigDefault.Check.Index, "verify only this piece index (-1 = fetch the whole file)")
	f.Bool("version", false, "print version and exit")
}

func (c *Config) Validate() error {
	if c.Client.URL == "" {
		return errors.New("--client.url is required")
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("--fetch.workers must be at least 1, got %d", c.Fetch.Workers)
	}
	if c.Check.Root != "" {
		if _, err := merkle.ParseDigest(c.Check.Root); err != nil {
			return errors.Wrap(err, "--check.root")
		}
	}
	return nil
}

func ParseConfig(args []string) (*Config, []byte, error) {
	f := flag.NewFlagSet("merklefetch", flag.ContinueOnError)
	ConfigAddOptions(f)
	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, nil, err
	}
	var cfg Config
	if err := confighelpers.EndCommonParse(k, &cfg); err != nil {
		return nil, nil, err
	}
	if cfg.Conf.Dump {
		dump, err := confighelpers.DumpConfig(k, map[string]interface{}{"conf.dump": false})
		return &cfg, dump, err
	}
	if cfg.Version {
		return &cfg, nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, nil, nil
}
