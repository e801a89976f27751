// Package confighelpers layers command line flags, JSON config files and
// environment variables into a koanf tree and unmarshals it into a config
// struct. Precedence, lowest first: flag defaults, files, environment,
// explicitly set flags.
package confighelpers

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

type ConfConfig struct {
	File      []string `koanf:"file"`
	EnvPrefix string   `koanf:"env-prefix"`
	Dump      bool     `koanf:"dump"`
}

var ConfConfigDefault = ConfConfig{
	File:      nil,
	EnvPrefix: "",
	Dump:      false,
}

func ConfConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.StringSlice(prefix+".file", ConfConfigDefault.File, "name of configuration file")
	f.String(prefix+".env-prefix", ConfConfigDefault.EnvPrefix, "environment variables with given prefix will be loaded as configuration values")
	f.Bool(prefix+".dump", ConfConfigDefault.Dump, "print out currently active configuration file")
}

// EnvKey maps PREFIX_CLIENT_RETRY__INTERVAL to client.retry-interval.
func EnvKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix+"_"))
		s = strings.ReplaceAll(s, "__", "-")
		return strings.ReplaceAll(s, "_", ".")
	}
}

func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, fmt.Errorf("unexpected argument: %s", f.Arg(0))
	}

	k := koanf.New(".")
	files, err := f.GetStringSlice("conf.file")
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, errors.Wrapf(err, "error loading config file %s", path)
		}
	}
	envPrefix := k.String("conf.env-prefix")
	if f.Changed("conf.env-prefix") {
		if envPrefix, err = f.GetString("conf.env-prefix"); err != nil {
			return nil, err
		}
	}
	if envPrefix != "" {
		if err := k.Load(env.Provider(envPrefix+"_", ".", EnvKey(envPrefix)), nil); err != nil {
			return nil, errors.Wrap(err, "error loading environment variables")
		}
	}
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, errors.Wrap(err, "error loading flags")
	}
	return k, nil
}

func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := koanf.UnmarshalConf{
		Tag: "koanf",
	}
	if err := k.UnmarshalWithConf("", config, decoderConfig); err != nil {
		return errors.Wrap(err, "error unmarshalling configuration")
	}
	return nil
}

// DumpConfig renders k as indented JSON after applying overrides, which is
// used to hide the dump flag itself.
func DumpConfig(k *koanf.Koanf, overrides map[string]interface{}) ([]byte, error) {
	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return nil, errors.Wrap(err, "error removing extra parameters before dump")
	}
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal config file to JSON")
	}
	return c, nil
}
