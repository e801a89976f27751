package codec

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"merklefetch/internal/types"
)

const ContentTypeCBOR = "application/cbor"

func DecodeHashesCBOR(b []byte) ([]types.HashEntry, error) {
	var out []types.HashEntry
	if err := cbor.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decode hashes cbor")
	}
	return out, nil
}

func DecodePieceCBOR(b []byte) (types.PieceResponse, error) {
	var out types.PieceResponse
	if err := cbor.Unmarshal(b, &out); err != nil {
		return out, errors.Wrap(err, "decode piece cbor")
	}
	return out, nil
}

func EncodeCBOR(v any) ([]byte, error) { return cbor.Marshal(v) }

func EncodeManifest(m types.Manifest) ([]byte, error) {
	b, err := cbor.Marshal(m)
	return b, errors.Wrap(err, "encode manifest")
}

func DecodeManifest(b []byte) (types.Manifest, error) {
	var m types.Manifest
	if err := cbor.Unmarshal(b, &m); err != nil {
		return m, errors.Wrap(err, "decode manifest")
	}
	return m, nil
}
