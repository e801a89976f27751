package pieceserver

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"merklefetch/internal/merkle"
	"merklefetch/internal/types"
)

const DefaultPieceSize = 1024

// File is a served file split into zero-padded pieces.
type File struct {
	Name   string
	Size   int
	Pieces [][]byte
	Tree   *Tree
}

// Split cuts data into pieceSize chunks, zero-padding the last one. Empty
// data yields a single all-zero piece.
func Split(data []byte, pieceSize int) [][]byte {
	n := (len(data) + pieceSize - 1) / pieceSize
	if n == 0 {
		n = 1
	}
	pieces := make([][]byte, n)
	for i := range pieces {
		p := make([]byte, pieceSize)
		if off := i * pieceSize; off < len(data) {
			copy(p, data[off:])
		}
		pieces[i] = p
	}
	return pieces
}

func NewFile(name string, data []byte, pieceSize int) *File {
	pieces := Split(data, pieceSize)
	leaves := make([]merkle.Digest, len(pieces))
	for i, p := range pieces {
		leaves[i] = merkle.HashPiece(p)
	}
	pad := merkle.HashPiece(make([]byte, pieceSize))
	return &File{Name: name, Size: len(data), Pieces: pieces, Tree: BuildTree(leaves, pad)}
}

type Store struct {
	mu        sync.RWMutex
	pieceSize int
	order     []merkle.Digest
	files     map[merkle.Digest]*File
}

func NewStore(pieceSize int) *Store {
	if pieceSize <= 0 {
		pieceSize = DefaultPieceSize
	}
	return &Store{pieceSize: pieceSize, files: make(map[merkle.Digest]*File)}
}

func (s *Store) Add(name string, data []byte) *File {
	f := NewFile(name, data, s.pieceSize)
	root := f.Tree.Root()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[root]; !ok {
		s.order = append(s.order, root)
	}
	s.files[root] = f
	return f
}

func (s *Store) AddPath(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return s.Add(filepath.Base(path), b), nil
}

func (s *Store) Get(root merkle.Digest) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[root]
	return f, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Hashes lists served roots in insertion order.
func (s *Store) Hashes() []types.HashEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.HashEntry, 0, len(s.order))
	for _, root := range s.order {
		out = append(out, types.HashEntry{Hash: root.String(), Pieces: s.files[root].Tree.Pieces()})
	}
	return out
}
