package codec

import (
	"encoding/base64"

	"github.com/pkg/errors"

	"merklefetch/internal/merkle"
	"merklefetch/internal/types"
)

// Piece decodes a piece response into raw content and a parsed proof.
// Malformed proof hashes surface as merkle.ErrMalformedDigest.
func Piece(resp types.PieceResponse) ([]byte, []merkle.Digest, error) {
	content, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode piece content")
	}
	proof, err := merkle.ParseProof(resp.Proof)
	if err != nil {
		return nil, nil, err
	}
	return content, proof, nil
}
