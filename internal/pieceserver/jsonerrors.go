package pieceserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"merklefetch/internal/types"
)

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// jsonErrorWriter rewrites plain-text error responses written by http.Error
// into a JSON errorBody with the same status code.
type jsonErrorWriter struct {
	http.ResponseWriter
	code    int
	capture bool
}

func (w *jsonErrorWriter) WriteHeader(code int) {
	if code >= 400 && strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Del("X-Content-Type-Options")
		w.code = code
		w.capture = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *jsonErrorWriter) Write(b []byte) (int, error) {
	if !w.capture {
		return w.ResponseWriter.Write(b)
	}
	w.capture = false
	err := json.NewEncoder(w.ResponseWriter).Encode(errorBody{
		Error:  strings.TrimSpace(string(b)),
		Status: w.code,
	})
	return len(b), err
}

func jsonErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&jsonErrorWriter{ResponseWriter: w}, r)
	})
}

// withRequestID echoes the caller's request id, minting one when absent.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(types.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(types.RequestIDHeader, id)
		log.Trace("Request", "method", r.Method, "path", r.URL.Path, "id", id)
		next.ServeHTTP(w, r)
	})
}
