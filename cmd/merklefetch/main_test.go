package main

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"merklefetch/internal/codec"
	"merklefetch/internal/fetch"
	"merklefetch/internal/merkle"
	"merklefetch/internal/pieceserver"
)

func startServer(t *testing.T, data []byte, cfg pieceserver.Config) (string, *pieceserver.File) {
	t.Helper()
	store := pieceserver.NewStore(100)
	file := store.Add("t.bin", data)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pieceserver.New(store, cfg).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "http://" + ln.Addr().String(), file
}

func testData() []byte {
	data := make([]byte, 1650)
	for i := range data {
		data[i] = byte(i%251) + 1
	}
	return data
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, dump, err := ParseConfig(nil)
	require.NoError(t, err)
	require.Nil(t, dump)
	require.Equal(t, ConfigDefault.Client.URL, cfg.Client.URL)
	require.Equal(t, int64(-1), cfg.Check.Index)
}

func TestParseConfigDump(t *testing.T) {
	_, dump, err := ParseConfig([]string{"--conf.dump", "--fetch.workers", "3"})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(dump, &m))
	require.EqualValues(t, 3, m["fetch"].(map[string]any)["workers"])
}

func TestParseConfigInvalid(t *testing.T) {
	_, _, err := ParseConfig([]string{"--fetch.workers", "0"})
	require.Error(t, err)
	_, _, err = ParseConfig([]string{"--check.root", "ABCD"})
	require.ErrorIs(t, err, merkle.ErrMalformedDigest)
}

func TestRunFetch(t *testing.T) {
	url, _ := startServer(t, testData(), pieceserver.ConfigDefault)
	out := filepath.Join(t.TempDir(), "out.bin")
	cfg, _, err := ParseConfig([]string{"--client.url", url, "--fetch.output", out})
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), cfg))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, testData(), got)

	b, err := os.ReadFile(out + fetch.ManifestSuffix)
	require.NoError(t, err)
	m, err := codec.DecodeManifest(b)
	require.NoError(t, err)
	require.Equal(t, uint64(len(testData())), m.Size)
	require.Equal(t, uint64(17), m.Pieces)
}

func TestRunCheckPiece(t *testing.T) {
	url, file := startServer(t, testData(), pieceserver.ConfigDefault)
	root := file.Tree.Root().String()

	cfg, _, err := ParseConfig([]string{"--client.url", url, "--check.root", root, "--check.index", "8"})
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), cfg))

	cfg, _, err = ParseConfig([]string{"--client.url", url, "--check.index", "17"})
	require.NoError(t, err)
	require.ErrorIs(t, run(context.Background(), cfg), merkle.ErrInvalidIndex)

	other := merkle.HashPiece([]byte("other")).String()
	cfg, _, err = ParseConfig([]string{"--client.url", url, "--check.root", other})
	require.NoError(t, err)
	require.Error(t, run(context.Background(), cfg))
}

func TestRunAlwaysCorrupt(t *testing.T) {
	scfg := pieceserver.ConfigDefault
	scfg.CorruptEvery = 1
	url, _ := startServer(t, testData(), scfg)
	cfg, _, err := ParseConfig([]string{"--client.url", url, "--check.index", "0", "--fetch.mismatch-retries", "1", "--client.retry-interval", "1ms"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.ErrorIs(t, run(ctx, cfg), merkle.ErrMismatch)
}
