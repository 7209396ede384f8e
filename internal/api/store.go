package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mkarling/sparsemat/internal/sparse"
)

// MatrixStore owns the server's matrices. Matrix handles are not
// goroutine-safe, so every operation on a stored matrix runs under the
// store lock via With.
type MatrixStore struct {
	mu       sync.Mutex
	matrices map[string]*sparse.Matrix[float32]
}

func NewMatrixStore() *MatrixStore {
	return &MatrixStore{
		matrices: make(map[string]*sparse.Matrix[float32]),
	}
}

func newMatrixID() string {
	return "mat_" + uuid.NewString()
}

// Put stores a matrix under a fresh id.
func (s *MatrixStore) Put(m *sparse.Matrix[float32]) string {
	id := newMatrixID()
	s.mu.Lock()
	s.matrices[id] = m
	s.mu.Unlock()
	return id
}

// With runs fn against the stored matrix while holding the store lock.
// It returns false if the id is unknown.
func (s *MatrixStore) With(id string, fn func(m *sparse.Matrix[float32]) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matrices[id]
	if !ok {
		return false, nil
	}
	return true, fn(m)
}

// With2 is With for operations over two stored matrices.
func (s *MatrixStore) With2(idA, idB string, fn func(a, b *sparse.Matrix[float32]) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, okA := s.matrices[idA]
	b, okB := s.matrices[idB]
	if !okA || !okB {
		return false, nil
	}
	return true, fn(a, b)
}

// Delete releases and removes a matrix.
func (s *MatrixStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matrices[id]
	if !ok {
		return false
	}
	m.Release()
	delete(s.matrices, id)
	return true
}

// IDs returns the stored ids.
func (s *MatrixStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.matrices))
	for id := range s.matrices {
		ids = append(ids, id)
	}
	return ids
}
