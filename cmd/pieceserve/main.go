package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"merklefetch/internal/buildinfo"
	"merklefetch/internal/confighelpers"
	"merklefetch/internal/logging"
	"merklefetch/internal/pieceserver"
)

type Config struct {
	Conf    confighelpers.ConfConfig `koanf:"conf"`
	Log     logging.Config           `koanf:"log"`
	Server  pieceserver.Config       `koanf:"server"`
	Version bool                     `koanf:"version"`
}

func ParseConfig(args []string) (*Config, []byte, error) {
	f := flag.NewFlagSet("pieceserve", flag.ContinueOnError)
	confighelpers.ConfConfigAddOptions("conf", f)
	logging.ConfigAddOptions("log", f)
	pieceserver.ConfigAddOptions("server", f)
	f.Bool("version", false, "print version and exit")

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
	if !cfg.Version && len(cfg.Server.Files) == 0 {
		return nil, nil, errors.New("--server.files is required")
	}
	return &cfg, nil, nil
}

func main() {
	cfg, dump, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "pieceserve:", err)
		os.Exit(1)
	}
	if dump != nil {
		fmt.Println(string(dump))
		return
	}
	if cfg.Version {
		fmt.Println(buildinfo.String("pieceserve"))
		return
	}
	if err := logging.Init(cfg.Log, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pieceserve:", err)
		os.Exit(1)
	}

	store := pieceserver.NewStore(cfg.Server.PieceSize)
	for _, path := range cfg.Server.Files {
		file, err := store.AddPath(path)
		if err != nil {
			log.Crit("Loading file failed", "err", err)
		}
		log.Info("Serving file", "name", file.Name, "root", file.Tree.Root(), "pieces", file.Tree.Pieces(), "size", file.Size)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Crit("Listen failed", "addr", cfg.Server.Addr, "err", err)
	}
	log.Info("Starting pieceserve", "version", buildinfo.Version, "commit", buildinfo.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := pieceserver.New(store, cfg.Server).Serve(ctx, ln); err != nil {
		log.Error("Serve failed", "err", err)
		stop()
		os.Exit(1)
	}
	log.Info("Shut down")
}
