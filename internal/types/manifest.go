package types

// Manifest describes a reassembled file. It is written next to the output.
type Manifest struct {
	Root       string   `json:"root"        cbor:"root"`
	Pieces     uint64   `json:"pieces"      cbor:"pieces"`
	PieceBytes uint64   `json:"piece_bytes" cbor:"piece_bytes"` // before padding trim
	Size       uint64   `json:"size"        cbor:"size"`
	Blake3     string   `json:"blake3"      cbor:"blake3"`
	Attempts   []uint32 `json:"attempts"    cbor:"attempts"` // fetches per piece
	TimeUTC    int64    `json:"time_utc"    cbor:"time_utc"`
}
