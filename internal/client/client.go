package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"merklefetch/internal/codec"
	"merklefetch/internal/merkle"
	"merklefetch/internal/types"
)

const maxBody = 16 << 20

// Root is a validated /hashes entry.
type Root struct {
	Hash   merkle.Digest
	Pieces uint64
}

// Piece is a decoded piece response. Content and Proof must not be modified.
type Piece struct {
	Content []byte
	Proof   []merkle.Digest
}

type pieceKey struct {
	root  merkle.Digest
	index uint64
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	cfg   Config
	base  string
	http  *http.Client
	cache *lru.Cache[pieceKey, *Piece]
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("client: empty server url")
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[pieceKey, *Piece](size)
	if err != nil {
		return nil, errors.Wrap(err, "client: piece cache")
	}
	return &Client{
		cfg:   cfg,
		base:  strings.TrimRight(cfg.URL, "/"),
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
	}, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if c.cfg.RetryInterval > 0 {
		eb.InitialInterval = c.cfg.RetryInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.Retries), ctx)
}

// get fetches path, retrying transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string) ([]byte, string, error) {
	var body []byte
	var contentType string
	id := uuid.NewString()
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.cfg.CBOR {
			req.Header.Set("Accept", codec.ContentTypeCBOR+", application/json")
		} else {
			req.Header.Set("Accept", "application/json")
		}
		req.Header.Set(types.RequestIDHeader, id)
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Debug("Request failed, retrying", "path", path, "id", id, "err", err)
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			se := &StatusError{Code: resp.StatusCode, Body: string(b)}
			if se.temporary() {
				log.Debug("Server busy, retrying", "path", path, "id", id, "status", resp.StatusCode)
				return se
			}
			return backoff.Permanent(se)
		}
		body, contentType = b, resp.Header.Get("Content-Type")
		return nil
	}
	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return nil, "", errors.Wrapf(err, "GET %s", path)
	}
	return body, contentType, nil
}

func isCBOR(contentType string) bool {
	return strings.HasPrefix(contentType, codec.ContentTypeCBOR)
}

// Hashes lists the roots the server offers.
func (c *Client) Hashes(ctx context.Context) ([]Root, error) {
	b, ct, err := c.get(ctx, "/hashes")
	if err != nil {
		return nil, err
	}
	var entries []types.HashEntry
	if isCBOR(ct) {
		entries, err = codec.DecodeHashesCBOR(b)
	} else {
		entries, err = codec.DecodeHashes(b)
	}
	if err != nil {
		return nil, err
	}
	roots := make([]Root, len(entries))
	for i, e := range entries {
		d, err := merkle.ParseDigest(e.Hash)
		if err != nil {
			return nil, errors.Wrapf(err, "hashes[%d]", i)
		}
		if e.Pieces == 0 {
			return nil, errors.Wrapf(&merkle.IndexError{}, "hashes[%d] %s", i, e.Hash)
		}
		roots[i] = Root{Hash: d, Pieces: e.Pieces}
	}
	return roots, nil
}

// Piece returns piece index of root, from cache when possible. The result is
// not verified.
func (c *Client) Piece(ctx context.Context, root merkle.Digest, index uint64) (*Piece, error) {
	key := pieceKey{root: root, index: index}
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	b, ct, err := c.get(ctx, fmt.Sprintf("/piece/%s/%d", root, index))
	if err != nil {
		return nil, err
	}
	var resp types.PieceResponse
	if isCBOR(ct) {
		resp, err = codec.DecodePieceCBOR(b)
	} else {
		resp, err = codec.DecodePiece(b)
	}
	if err != nil {
		return nil, err
	}
	content, proof, err := codec.Piece(resp)
	if err != nil {
		return nil, errors.Wrapf(err, "piece %d", index)
	}
	p := &Piece{Content: content, Proof: proof}
	c.cache.Add(key, p)
	return p, nil
}

// Evict drops a cached piece so the next Piece call goes to the server.
func (c *Client) Evict(root merkle.Digest, index uint64) {
	c.cache.Remove(pieceKey{root: root, index: index})
}

// Ready reports whether the server answers /hashes.
func (c *Client) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/hashes", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
