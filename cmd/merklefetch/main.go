package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"merklefetch/internal/buildinfo"
	"merklefetch/internal/client"
	"merklefetch/internal/fetch"
	"merklefetch/internal/harness"
	"merklefetch/internal/logging"
	"merklefetch/internal/merkle"
)

func main() {
	os.Exit(mainImpl())
}

func mainImpl() int {
	cfg, dump, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "merklefetch:", err)
		return 1
	}
	if dump != nil {
		fmt.Println(string(dump))
		return 0
	}
	if cfg.Version {
		fmt.Println(buildinfo.String("merklefetch"))
		return 0
	}
	if err := logging.Init(cfg.Log, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "merklefetch:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Error("Fetch failed", "err", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *Config) error {
	if len(cfg.Server.Command) > 0 {
		if cfg.Server.ReadyURL == "" {
			cfg.Server.ReadyURL = cfg.Client.URL + "/hashes"
		}
		proc, err := harness.Start(ctx, cfg.Server)
		if err != nil {
			return err
		}
		defer proc.Close()
	}

	c, err := client.New(cfg.Client)
	if err != nil {
		return err
	}
	f := fetch.New(c, cfg.Fetch)

	root, err := pickRoot(ctx, c, cfg.Check.Root)
	if err != nil {
		return err
	}

	if cfg.Check.Index >= 0 {
		index := uint64(cfg.Check.Index)
		if index >= root.Pieces {
			return &merkle.IndexError{NumPieces: root.Pieces, PieceIndex: index}
		}
		_, attempts, err := f.VerifiedPiece(ctx, root, index)
		if err != nil {
			return err
		}
		log.Info("Piece verified", "root", root.Hash, "index", index, "pieces", root.Pieces, "attempts", attempts)
		return nil
	}

	res, err := f.Fetch(ctx, root)
	if err != nil {
		return err
	}
	if cfg.Fetch.Output != "" {
		if err := fetch.WriteOutput(cfg.Fetch.Output, res, cfg.Fetch.Manifest); err != nil {
			return err
		}
		log.Info("Wrote output", "path", cfg.Fetch.Output, "size", res.Manifest.Size, "blake3", res.Manifest.Blake3)
	}
	return nil
}

func pickRoot(ctx context.Context, c *client.Client, want string) (client.Root, error) {
	roots, err := c.Hashes(ctx)
	if err != nil {
		return client.Root{}, err
	}
	if len(roots) == 0 {
		return client.Root{}, fetch.ErrNoRoots
	}
	if want == "" {
		return roots[0], nil
	}
	for _, r := range roots {
		if r.Hash.String() == want {
			return r, nil
		}
	}
	return client.Root{}, errors.Errorf("root %s not listed by server", want)
}
