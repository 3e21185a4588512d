package catalog

import (
	"slices"
	"sync"

	"github.com/xenking/catalog-console/internal/domain/product"
)

// Snapshot is the in-memory mirror of the last successfully fetched catalog.
//
// Writers publish a fresh slice instead of mutating the published one, so a
// slice returned by Products stays stable for its holder while later writes
// proceed.
type Snapshot struct {
	mu       sync.RWMutex
	products []product.Product
	loaded   bool
}

// NewSnapshot returns an empty snapshot that has not been loaded yet.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Replace swaps the whole snapshot for products.
func (s *Snapshot) Replace(products []product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = products
	s.loaded = true
}

// Products returns the snapshot as it currently stands. The slice is shared,
// not copied; callers must not modify it.
func (s *Snapshot) Products() []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

// Loaded reports whether Replace has been called at least once.
func (s *Snapshot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Len returns the number of products in the snapshot.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Remove drops the first product whose ID matches id, keeping the relative
// order of the rest. It reports whether a product was removed.
func (s *Snapshot) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.products, func(p product.Product) bool {
		return p.ID == id
	})
	if idx < 0 {
		return false
	}

	next := make([]product.Product, 0, len(s.products)-1)
	next = append(next, s.products[:idx]...)
	next = append(next, s.products[idx+1:]...)
	s.products = next
	return true
}
