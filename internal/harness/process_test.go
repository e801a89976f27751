package harness

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"merklefetch/internal/client"
	"merklefetch/internal/fetch"
	"merklefetch/internal/pieceserver"
)

// TestHelperProcess is not a real test. It is re-executed as the external
// server by the tests below.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("HARNESS_HELPER")
	if mode == "" {
		return
	}
	switch mode {
	case "serve":
		store := pieceserver.NewStore(0)
		store.Add("helper.bin", helperData())
		ln, err := net.Listen("tcp", os.Getenv("HARNESS_ADDR"))
		if err != nil {
			fmt.Println("listen:", err)
			os.Exit(2)
		}
		fmt.Println("serving on", ln.Addr())
		_ = pieceserver.New(store, pieceserver.Config{}).Serve(context.Background(), ln)
	case "exit":
		fmt.Println("bad arguments")
		os.Exit(3)
	case "longline":
		os.Stdout.Write(bytes.Repeat([]byte("x"), 3<<20))
		fmt.Println()
		fmt.Println("tail")
	case "hang":
		fmt.Println("never ready")
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperData() []byte {
	return bytes.Repeat([]byte("radix merkle piece "), 1000)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func helperConfig(t *testing.T, mode, addr string) Config {
	cfg := ConfigDefault
	cfg.Command = []string{os.Args[0], "-test.run=^TestHelperProcess$"}
	cfg.Env = []string{"HARNESS_HELPER=" + mode, "HARNESS_ADDR=" + addr}
	cfg.ReadyURL = "http://" + addr + "/hashes"
	cfg.ReadyInterval = 50 * time.Millisecond
	cfg.ReadyTimeout = 10 * time.Second
	cfg.StopTimeout = 2 * time.Second
	cfg.ConsoleLog.File = filepath.Join(t.TempDir(), "merkle_server_console.log")
	return cfg
}

func TestStartFetchClose(t *testing.T) {
	addr := freeAddr(t)
	cfg := helperConfig(t, "serve", addr)
	p, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	defer p.Close()

	ccfg := client.ConfigDefault
	ccfg.URL = "http://" + addr
	c, err := client.New(ccfg)
	require.NoError(t, err)
	res, err := fetch.New(c, fetch.ConfigDefault).FetchFirst(context.Background())
	require.NoError(t, err)
	require.True(t, bytes.Equal(helperData(), res.Data))

	require.NoError(t, p.Close())
	select {
	case <-p.Done():
	default:
		t.Fatal("process still running after Close")
	}
	require.NoError(t, p.Close())

	console, err := os.ReadFile(cfg.ConsoleLog.File)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(console), "serving on"), "console log: %q", console)
}

func TestStartProcessExits(t *testing.T) {
	cfg := helperConfig(t, "exit", freeAddr(t))
	start := time.Now()
	_, err := Start(context.Background(), cfg)
	require.ErrorIs(t, err, ErrExited)
	require.Less(t, time.Since(start), cfg.ReadyTimeout)
}

func TestStartNeverReady(t *testing.T) {
	cfg := helperConfig(t, "hang", freeAddr(t))
	cfg.ReadyTimeout = 300 * time.Millisecond
	_, err := Start(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not ready")
}

func TestStartContextCancelled(t *testing.T) {
	cfg := helperConfig(t, "hang", freeAddr(t))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := Start(ctx, cfg)
	require.Error(t, err)
}

func TestStartRequiresCommand(t *testing.T) {
	_, err := Start(context.Background(), ConfigDefault)
	require.Error(t, err)
}

func TestStartReadyTimeoutIsWallClock(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	cfg := helperConfig(t, "hang", freeAddr(t))
	cfg.ReadyURL = slow.URL
	cfg.ReadyInterval = 10 * time.Millisecond
	cfg.ReadyTimeout = 500 * time.Millisecond
	start := time.Now()
	_, err := Start(context.Background(), cfg)
	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second)

	cfg.ReadyInterval = time.Hour
	cfg.ReadyTimeout = 200 * time.Millisecond
	start = time.Now()
	_, err = Start(context.Background(), cfg)
	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestOverlongOutputLineDoesNotStallProcess(t *testing.T) {
	cfg := helperConfig(t, "longline", freeAddr(t))
	cfg.ReadyURL = ""
	p, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	defer p.Close()
	select {
	case <-p.Done():
	case <-time.After(20 * time.Second):
		t.Fatal("process blocked writing output")
	}
	require.NoError(t, p.Close())
}
