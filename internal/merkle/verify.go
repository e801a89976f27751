package merkle

import "crypto/sha256"

// ComputeRoot folds proof up the path of pieceIndex, starting from the hash
// of content, and returns the resulting root candidate. The proof must hold
// exactly one sibling per tree level.
func ComputeRoot(numPieces, pieceIndex uint64, content []byte, proof []Digest) (Digest, error) {
	path, err := DerivePath(numPieces, pieceIndex)
	if err != nil {
		return Digest{}, err
	}
	if len(proof) != len(path) {
		return Digest{}, &LengthMismatchError{ProofLen: len(proof), PathLen: len(path)}
	}
	current := HashPiece(content)
	for i, left := range path {
		current = fold(current, proof[i][:], left)
	}
	return current, nil
}

// Verify checks that content is piece pieceIndex of the tree with the given
// root. A failed check returns a *MismatchError; bad arguments return
// *IndexError or *LengthMismatchError.
func Verify(root Digest, numPieces, pieceIndex uint64, content []byte, proof []Digest) error {
	computed, err := ComputeRoot(numPieces, pieceIndex, content, proof)
	if err != nil {
		return err
	}
	if computed != root {
		return &MismatchError{Computed: computed, Expected: root}
	}
	return nil
}

// fold combines the running hash with one sibling. When current is the left
// child it is the first operand.
func fold(current Digest, sibling []byte, left bool) Digest {
	h := sha256.New()
	if left {
		h.Write(current[:])
		h.Write(sibling)
	} else {
		h.Write(sibling)
		h.Write(current[:])
	}
	var out Digest
	h.Sum(out[:0])
	return out
}
