// Package merkle verifies that a file piece belongs to a binary SHA-256
// Merkle tree with a known root, given the piece's sibling-hash proof.
//
// Leaves are SHA256(piece). A parent is SHA256(left || right). A tree of n
// pieces has ceil(log2(n)) levels above the leaf row; the leaf row is padded
// to a power of two by the party that builds the tree.
package merkle
