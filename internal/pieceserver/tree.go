package pieceserver

import (
	"crypto/sha256"

	"merklefetch/internal/merkle"
)

// Leaf = H(piece), Inner = H(L || R). The leaf row is padded to a power of
// two with the pad digest.
func innerHash(l, r merkle.Digest) merkle.Digest {
	var buf [2 * merkle.DigestSize]byte
	copy(buf[:], l[:])
	copy(buf[merkle.DigestSize:], r[:])
	return sha256.Sum256(buf[:])
}

type Tree struct {
	levels [][]merkle.Digest // levels[0] = padded leaf row, last = [root]
	pieces uint64
}

// BuildTree needs at least one leaf.
func BuildTree(leaves []merkle.Digest, pad merkle.Digest) *Tree {
	n := len(leaves)
	if n == 0 {
		leaves, n = []merkle.Digest{pad}, 1
	}
	width := 1 << merkle.Levels(uint64(n))
	level := make([]merkle.Digest, width)
	copy(level, leaves)
	for i := n; i < width; i++ {
		level[i] = pad
	}
	levels := [][]merkle.Digest{level}
	for len(level) > 1 {
		next := make([]merkle.Digest, len(level)/2)
		for i := range next {
			next[i] = innerHash(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels, pieces: uint64(n)}
}

func (t *Tree) Root() merkle.Digest { return t.levels[len(t.levels)-1][0] }
func (t *Tree) Pieces() uint64      { return t.pieces }

// Proof returns the sibling hashes of piece index, leaf to root.
func (t *Tree) Proof(index uint64) ([]merkle.Digest, error) {
	if index >= t.pieces {
		return nil, &merkle.IndexError{NumPieces: t.pieces, PieceIndex: index}
	}
	proof := make([]merkle.Digest, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		proof = append(proof, level[index^1])
		index >>= 1
	}
	return proof, nil
}
