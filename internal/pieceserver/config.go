package pieceserver

import (
	flag "github.com/spf13/pflag"
)

type Config struct {
	Addr         string   `koanf:"addr"`
	PieceSize    int      `koanf:"piece-size"`
	Files        []string `koanf:"files"`
	CorruptEvery int      `koanf:"corrupt-every"`
	RateBurst    int64    `koanf:"rate-burst"`
	RatePerSec   float64  `koanf:"rate-per-sec"`
}

var ConfigDefault = Config{
	Addr:         "127.0.0.1:8080",
	PieceSize:    DefaultPieceSize,
	Files:        nil,
	CorruptEvery: 0,
	RateBurst:    0,
	RatePerSec:   0,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".addr", ConfigDefault.Addr, "address to listen on")
	f.Int(prefix+".piece-size", ConfigDefault.PieceSize, "piece size in bytes")
	f.StringSlice(prefix+".files", ConfigDefault.Files, "files to serve")
	f.Int(prefix+".corrupt-every", ConfigDefault.CorruptEvery, "corrupt every Nth piece response (0=never)")
	f.Int64(prefix+".rate-burst", ConfigDefault.RateBurst, "piece request burst size (0=unlimited)")
	f.Float64(prefix+".rate-per-sec", ConfigDefault.RatePerSec, "piece requests refilled per second")
}
