package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestSize is the length of a SHA-256 digest in bytes.
const DigestSize = sha256.Size

// Digest is a SHA-256 hash. Its wire form is 64 lowercase hex characters.
type Digest [DigestSize]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func (d Digest) Bytes() []byte { return d[:] }

// HashPiece returns the leaf hash of one piece.
func HashPiece(b []byte) Digest { return sha256.Sum256(b) }

// ParseDigest decodes a 64-character lowercase hex string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*DigestSize {
		return d, malformed(s, "want 64 hex characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return d, malformed(s, "non lowercase-hex character")
		}
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, malformed(s, err.Error())
	}
	return d, nil
}

// ParseProof decodes a leaf-to-root list of sibling hashes.
func ParseProof(hexes []string) ([]Digest, error) {
	out := make([]Digest, len(hexes))
	for i, s := range hexes {
		d, err := ParseDigest(s)
		if err != nil {
			if me, ok := err.(*MalformedDigestError); ok {
				me.Position = i
			}
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func malformed(s, reason string) *MalformedDigestError {
	return &MalformedDigestError{Value: s, Position: -1, Reason: reason}
}
