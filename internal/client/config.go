package client

import (
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	Retries       uint64        `koanf:"retries"`
	RetryInterval time.Duration `koanf:"retry-interval"`
	CacheSize     int           `koanf:"cache-size"`
	CBOR          bool          `koanf:"cbor"`
}

var ConfigDefault = Config{
	URL:           "http://localhost:8080",
	Timeout:       10 * time.Second,
	Retries:       5,
	RetryInterval: 200 * time.Millisecond,
	CacheSize:     1024,
	CBOR:          false,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".url", ConfigDefault.URL, "base URL of the Merkle file server")
	f.Duration(prefix+".timeout", ConfigDefault.Timeout, "per-request timeout")
	f.Uint64(prefix+".retries", ConfigDefault.Retries, "retries for transient transport errors")
	f.Duration(prefix+".retry-interval", ConfigDefault.RetryInterval, "initial retry backoff interval")
	f.Int(prefix+".cache-size", ConfigDefault.CacheSize, "number of decoded pieces kept in memory")
	f.Bool(prefix+".cbor", ConfigDefault.CBOR, "ask the server for CBOR responses")
}
