package merkle

import "math/bits"

// Path lists branch directions from a leaf up to the root. An element is true
// when the node at that level is its parent's left child.
type Path []bool

// Levels returns ceil(log2(numPieces)), the number of hashes between a leaf
// and the root. It is 0 for a single-piece tree.
func Levels(numPieces uint64) int {
	if numPieces <= 1 {
		return 0
	}
	return bits.Len64(numPieces - 1)
}

// DerivePath returns the leaf-to-root branch directions for pieceIndex in a
// tree of numPieces leaves.
func DerivePath(numPieces, pieceIndex uint64) (Path, error) {
	if numPieces == 0 || pieceIndex >= numPieces {
		return nil, &IndexError{NumPieces: numPieces, PieceIndex: pieceIndex}
	}
	levels := Levels(numPieces)
	path := make(Path, levels)
	index := pieceIndex
	for i := 0; i < levels; i++ {
		path[i] = index&1 == 0
		index >>= 1
	}
	return path, nil
}
