package fetch

import (
	flag "github.com/spf13/pflag"
)

type Config struct {
	Workers         int    `koanf:"workers"`
	MismatchRetries int    `koanf:"mismatch-retries"`
	MaxPieces       uint64 `koanf:"max-pieces"`
	Output          string `koanf:"output"`
	Manifest        bool   `koanf:"manifest"`
}

var ConfigDefault = Config{
	Workers:         8,
	MismatchRetries: 2,
	MaxPieces:       1 << 24,
	Output:          "",
	Manifest:        true,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Int(prefix+".workers", ConfigDefault.Workers, "pieces fetched and verified in parallel")
	f.Int(prefix+".mismatch-retries", ConfigDefault.MismatchRetries, "re-fetches of a piece that fails verification")
	f.Uint64(prefix+".max-pieces", ConfigDefault.MaxPieces, "refuse files the server lists with more pieces than this")
	f.String(prefix+".output", ConfigDefault.Output, "path of the reassembled file (empty = do not write)")
	f.Bool(prefix+".manifest", ConfigDefault.Manifest, "write <output>.manifest.cbor next to the output")
}
