package pieceserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"expvar"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"merklefetch/internal/codec"
	"merklefetch/internal/merkle"
	"merklefetch/internal/types"
)

type Server struct {
	store   *Store
	cfg     Config
	limiter *tokenBucket
	served  atomic.Int64
	boot    time.Time
	http    *http.Server
}

func New(store *Store, cfg Config) *Server {
	return &Server{
		store:   store,
		cfg:     cfg,
		limiter: newTokenBucket(cfg.RateBurst, cfg.RatePerSec),
		boot:    time.Now(),
	}
}

func wantsCBOR(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), codec.ContentTypeCBOR)
}

func writeBody(w http.ResponseWriter, r *http.Request, v any) {
	if wantsCBOR(r) {
		b, err := codec.EncodeCBOR(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", codec.ContentTypeCBOR)
		_, _ = w.Write(b)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/debug/vars", expvar.Handler())

	// --- Health ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":   "ok",
			"time_utc": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// --- Readiness: at least one file loaded ---
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		status, code := "starting", http.StatusServiceUnavailable
		if s.store.Len() > 0 {
			status, code = "ready", http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        status,
			"files":         s.store.Len(),
			"pieces_served": s.served.Load(),
			"uptime_secs":   int64(time.Since(s.boot).Seconds()),
		})
	})

	// --- Root hash listing ---
	mux.HandleFunc("/hashes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		metricRequests.Add(1)
		writeBody(w, r, s.store.Hashes())
	})

	// --- Piece: GET /piece/{hash}/{index} ---
	mux.HandleFunc("/piece/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		metricRequests.Add(1)
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/piece/"), "/")
		if len(parts) != 2 {
			http.Error(w, "want /piece/{hash}/{index}", http.StatusBadRequest)
			return
		}
		root, err := merkle.ParseDigest(parts[0])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		index, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			http.Error(w, "bad piece index", http.StatusBadRequest)
			return
		}
		f, ok := s.store.Get(root)
		if !ok {
			http.Error(w, "unknown hash", http.StatusNotFound)
			return
		}
		proof, err := f.Tree.Proof(index)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		content := f.Pieces[index]
		n := s.served.Add(1)
		if s.cfg.CorruptEvery > 0 && n%int64(s.cfg.CorruptEvery) == 0 {
			content = append([]byte(nil), content...)
			content[0] ^= 0xff
			metricCorrupted.Add(1)
			log.Debug("Corrupting piece", "root", root, "index", index, "id", w.Header().Get(types.RequestIDHeader))
		}
		metricPieces.Add(1)
		resp := types.PieceResponse{
			Content: base64.StdEncoding.EncodeToString(content),
			Proof:   make([]string, len(proof)),
		}
		for i, d := range proof {
			resp.Proof[i] = d.String()
		}
		writeBody(w, r, resp)
	})

	return withRequestID(jsonErrors(rateLimit(s.limiter, mux)))
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()
	log.Info("Piece server listening", "addr", ln.Addr().String(), "files", s.store.Len())
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
