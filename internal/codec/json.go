package codec

import (
	"encoding/json"

	"github.com/pkg/errors"

	"merklefetch/internal/types"
)

// Strip a UTF-8 BOM (0xEF,0xBB,0xBF) before parsing.
func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func DecodeHashes(b []byte) ([]types.HashEntry, error) {
	var out []types.HashEntry
	if err := json.Unmarshal(trimBOM(b), &out); err != nil {
		return nil, errors.Wrap(err, "decode hashes")
	}
	return out, nil
}

func DecodePiece(b []byte) (types.PieceResponse, error) {
	var out types.PieceResponse
	if err := json.Unmarshal(trimBOM(b), &out); err != nil {
		return out, errors.Wrap(err, "decode piece")
	}
	return out, nil
}
