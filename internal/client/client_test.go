package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"merklefetch/internal/merkle"
	"merklefetch/internal/pieceserver"
	"merklefetch/internal/types"
)

func testConfig(url string) Config {
	cfg := ConfigDefault
	cfg.URL = url
	cfg.RetryInterval = time.Millisecond
	cfg.Retries = 3
	return cfg
}

func servePieces(t *testing.T, cfg pieceserver.Config) (*httptest.Server, *pieceserver.File) {
	t.Helper()
	store := pieceserver.NewStore(cfg.PieceSize)
	f := store.Add("data", bytes.Repeat([]byte("merkle"), 300))
	srv := httptest.NewServer(pieceserver.New(store, cfg).Handler())
	t.Cleanup(srv.Close)
	return srv, f
}

func TestHashesAndPiece(t *testing.T) {
	for _, useCBOR := range []bool{false, true} {
		srv, f := servePieces(t, pieceserver.Config{PieceSize: 128})
		cfg := testConfig(srv.URL)
		cfg.CBOR = useCBOR
		c, err := New(cfg)
		require.NoError(t, err)

		roots, err := c.Hashes(context.Background())
		require.NoError(t, err)
		require.Equal(t, []Root{{Hash: f.Tree.Root(), Pieces: 15}}, roots)

		for i := uint64(0); i < roots[0].Pieces; i++ {
			p, err := c.Piece(context.Background(), roots[0].Hash, i)
			require.NoError(t, err)
			require.NoError(t, merkle.Verify(roots[0].Hash, roots[0].Pieces, i, p.Content, p.Proof))
		}
	}
}

func TestPieceCacheAndEvict(t *testing.T) {
	var hits atomic.Int64
	store := pieceserver.NewStore(64)
	f := store.Add("data", []byte("cache me if you can"))
	h := pieceserver.New(store, pieceserver.Config{}).Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()
	root := f.Tree.Root()

	_, err = c.Piece(ctx, root, 0)
	require.NoError(t, err)
	_, err = c.Piece(ctx, root, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())

	c.Evict(root, 0)
	_, err = c.Piece(ctx, root, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"hash":"9b39e1edb4858f7a3424d5a3d0c4579332640e58e101c29f99314a12329fc60b","pieces":17}]`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	roots, err := c.Hashes(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.EqualValues(t, 3, calls.Load())
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = c.Hashes(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadGateway, se.Code)
	require.EqualValues(t, 4, calls.Load())
}

func TestClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown hash", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = c.Piece(context.Background(), merkle.Digest{}, 0)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestMalformedWireDigests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hashes":
			_, _ = w.Write([]byte(`[{"hash":"ABC","pieces":2}]`))
		default:
			_, _ = w.Write([]byte(`{"content":"AAAA","proof":["xyz"]}`))
		}
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = c.Hashes(context.Background())
	require.ErrorIs(t, err, merkle.ErrMalformedDigest)
	_, err = c.Piece(context.Background(), merkle.Digest{}, 1)
	require.ErrorIs(t, err, merkle.ErrMalformedDigest)
}

func TestZeroPieceRootRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"hash":"9b39e1edb4858f7a3424d5a3d0c4579332640e58e101c29f99314a12329fc60b","pieces":0}]`))
	}))
	defer srv.Close()
	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = c.Hashes(context.Background())
	require.ErrorIs(t, err, merkle.ErrInvalidIndex)
}

func TestReady(t *testing.T) {
	c, err := New(testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	require.Error(t, c.Ready(context.Background()))

	srv, _ := servePieces(t, pieceserver.Config{})
	c, err = New(testConfig(srv.URL))
	require.NoError(t, err)
	require.NoError(t, c.Ready(context.Background()))
}

func TestRetriesKeepRequestID(t *testing.T) {
	var calls atomic.Int64
	ids := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(types.RequestIDHeader)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = c.Hashes(context.Background())
	require.NoError(t, err)
	first, second := <-ids, <-ids
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}
