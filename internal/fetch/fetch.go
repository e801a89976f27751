package fetch

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	pkgerrors "github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"merklefetch/internal/client"
	"merklefetch/internal/codec"
	"merklefetch/internal/merkle"
	"merklefetch/internal/types"
)

// ManifestSuffix is appended to the output path for the CBOR manifest.
const ManifestSuffix = ".manifest.cbor"

var (
	ErrNoRoots       = errors.New("fetch: server lists no files")
	ErrTooManyPieces = errors.New("fetch: piece count over limit")
)

// TooManyPiecesError rejects a listed piece count before anything is
// allocated for it.
type TooManyPiecesError struct {
	Pieces uint64
	Max    uint64
}

func (e *TooManyPiecesError) Error() string {
	return fmt.Sprintf("fetch: server lists %d pieces, limit is %d", e.Pieces, e.Max)
}

func (e *TooManyPiecesError) Is(target error) bool { return target == ErrTooManyPieces }

// Source is where pieces come from. *client.Client implements it.
type Source interface {
	Hashes(ctx context.Context) ([]client.Root, error)
	Piece(ctx context.Context, root merkle.Digest, index uint64) (*client.Piece, error)
	Evict(root merkle.Digest, index uint64)
}

type Fetcher struct {
	src Source
	cfg Config
}

func New(src Source, cfg Config) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MismatchRetries < 0 {
		cfg.MismatchRetries = 0
	}
	if cfg.MaxPieces == 0 {
		cfg.MaxPieces = ConfigDefault.MaxPieces
	}
	return &Fetcher{src: src, cfg: cfg}
}

type Result struct {
	Data     []byte
	Manifest types.Manifest
}

// retryable reports verification failures a fresh copy of the piece can fix:
// a root mismatch or a proof truncated or padded in transit.
func retryable(err error) bool {
	return errors.Is(err, merkle.ErrMismatch) || errors.Is(err, merkle.ErrLengthMismatch)
}

// VerifiedPiece fetches one piece and checks it against root. A piece that
// fails verification is re-fetched up to MismatchRetries times. It returns
// the content and the number of fetches made.
func (f *Fetcher) VerifiedPiece(ctx context.Context, root client.Root, index uint64) ([]byte, uint32, error) {
	var lastErr error
	for attempt := uint32(1); attempt <= uint32(f.cfg.MismatchRetries)+1; attempt++ {
		p, err := f.src.Piece(ctx, root.Hash, index)
		if err != nil {
			return nil, attempt, pkgerrors.Wrapf(err, "piece %d", index)
		}
		err = merkle.Verify(root.Hash, root.Pieces, index, p.Content, p.Proof)
		if err == nil {
			metricVerified.Add(1)
			return p.Content, attempt, nil
		}
		if !retryable(err) {
			return nil, attempt, pkgerrors.Wrapf(err, "piece %d", index)
		}
		metricMismatch.Add(1)
		log.Warn("Piece failed verification", "root", root.Hash, "index", index, "attempt", attempt, "err", err)
		f.src.Evict(root.Hash, index)
		lastErr = err
	}
	return nil, uint32(f.cfg.MismatchRetries) + 1, pkgerrors.Wrapf(lastErr, "piece %d", index)
}

// Fetch verifies every piece of root and reassembles the file, trimming the
// zero padding after the last byte.
func (f *Fetcher) Fetch(ctx context.Context, root client.Root) (*Result, error) {
	if root.Pieces == 0 {
		return nil, &merkle.IndexError{}
	}
	if root.Pieces > f.cfg.MaxPieces {
		return nil, &TooManyPiecesError{Pieces: root.Pieces, Max: f.cfg.MaxPieces}
	}
	start := time.Now()
	pieces := make([][]byte, root.Pieces)
	attempts := make([]uint32, root.Pieces)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i := uint64(0); i < root.Pieces; i++ {
		i := i
		g.Go(func() error {
			content, n, err := f.VerifiedPiece(gctx, root, i)
			attempts[i] = n
			if err != nil {
				return err
			}
			pieces[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, p := range pieces {
		total += len(p)
	}
	data := make([]byte, 0, total)
	for _, p := range pieces {
		data = append(data, p...)
	}
	data = bytes.TrimRight(data, "\x00")
	sum := blake3.Sum256(data)

	res := &Result{
		Data: data,
		Manifest: types.Manifest{
			Root:       root.Hash.String(),
			Pieces:     root.Pieces,
			PieceBytes: uint64(total),
			Size:       uint64(len(data)),
			Blake3:     hex.EncodeToString(sum[:]),
			Attempts:   attempts,
			TimeUTC:    time.Now().UTC().Unix(),
		},
	}
	log.Info("Fetched file", "root", root.Hash, "pieces", root.Pieces, "size", len(data), "elapsed", time.Since(start))
	return res, nil
}

// FetchFirst fetches the first file the source lists.
func (f *Fetcher) FetchFirst(ctx context.Context) (*Result, error) {
	roots, err := f.src.Hashes(ctx)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	return f.Fetch(ctx, roots[0])
}

// WriteOutput writes the reassembled file and, when manifest is set, its
// CBOR manifest at path+ManifestSuffix.
func WriteOutput(path string, res *Result, manifest bool) error {
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return pkgerrors.Wrap(err, "write output")
	}
	if !manifest {
		return nil
	}
	b, err := codec.EncodeManifest(res.Manifest)
	if err != nil {
		return err
	}
	return pkgerrors.Wrap(os.WriteFile(path+ManifestSuffix, b, 0o644), "write manifest")
}
