package merkle

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIndex    = errors.New("merkle: invalid piece index")
	ErrMalformedDigest = errors.New("merkle: malformed digest")
	ErrLengthMismatch  = errors.New("merkle: proof length does not match tree depth")
	ErrMismatch        = errors.New("merkle: root hash mismatch")
)

type IndexError struct {
	NumPieces  uint64
	PieceIndex uint64
}

func (e *IndexError) Error() string {
	if e.NumPieces == 0 {
		return "merkle: invalid piece index: tree has no pieces"
	}
	return fmt.Sprintf("merkle: invalid piece index: %d not in [0, %d)", e.PieceIndex, e.NumPieces)
}

func (e *IndexError) Is(target error) bool { return target == ErrInvalidIndex }

// MalformedDigestError reports a wire digest that is not 64 lowercase hex
// characters. Position is the proof element index, or -1 outside a proof.
type MalformedDigestError struct {
	Value    string
	Position int
	Reason   string
}

func (e *MalformedDigestError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("merkle: malformed digest at proof[%d] %q: %s", e.Position, e.Value, e.Reason)
	}
	return fmt.Sprintf("merkle: malformed digest %q: %s", e.Value, e.Reason)
}

func (e *MalformedDigestError) Is(target error) bool { return target == ErrMalformedDigest }

type LengthMismatchError struct {
	ProofLen int
	PathLen  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("merkle: proof has %d hashes, tree depth is %d", e.ProofLen, e.PathLen)
}

func (e *LengthMismatchError) Is(target error) bool { return target == ErrLengthMismatch }

// MismatchError is the outcome of a failed integrity check. Both digests are
// rendered in full so they can be diffed by eye.
type MismatchError struct {
	Computed Digest
	Expected Digest
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("merkle: calculated hash %s does not match expected hash %s", e.Computed, e.Expected)
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }
