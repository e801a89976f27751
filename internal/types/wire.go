package types

// RequestIDHeader carries a per-request id. The piece server echoes it back
// and logs it.
const RequestIDHeader = "X-Request-Id"

// HashEntry is one element of the /hashes listing.
type HashEntry struct {
	Hash   string `json:"hash"   cbor:"hash"`   // hex root
	Pieces uint64 `json:"pieces" cbor:"pieces"` // leaf count
}

// PieceResponse is the body of /piece/{hash}/{index}.
type PieceResponse struct {
	Content string   `json:"content" cbor:"content"` // std base64
	Proof   []string `json:"proof"   cbor:"proof"`   // hex, leaf -> root
}
