package memory

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/catalog"
)

type stockKey struct{ product, color, size string }

// Store is an in-process catalog and stock ledger for tests and local runs.
// A single mutex makes ApplyDelta's check-and-apply indivisible.
type Store struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	stock    map[stockKey]int
}

func NewStore(products ...catalog.Product) *Store {
	s := &Store{
		products: make(map[string]catalog.Product),
		stock:    make(map[stockKey]int),
	}
	for _, p := range products {
		s.Put(p)
	}
	return s
}

// Put adds or replaces a product and resets its stock from the size entries.
func (s *Store) Put(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	for _, v := range p.Variants {
		for _, e := range v.Sizes {
			s.stock[stockKey{p.ID, v.Color, e.Size}] = e.Stock
		}
	}
}

func (s *Store) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperr.NotFound("product %s not found", id)
	}
	out := p
	out.Variants = make([]catalog.ColorVariant, len(p.Variants))
	for i, v := range p.Variants {
		v.Sizes = append([]catalog.SizeEntry(nil), v.Sizes...)
		for j := range v.Sizes {
			v.Sizes[j].Stock = s.stock[stockKey{p.ID, v.Color, v.Sizes[j].Size}]
		}
		out.Variants[i] = v
	}
	return &out, nil
}

func (s *Store) ReadStock(_ context.Context, productID, color, size string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.stock[stockKey{productID, color, size}]
	if !ok {
		return 0, apperr.NotFound("no stock entry for %s/%s/%s", productID, color, size)
	}
	return n, nil
}

func (s *Store) ApplyDelta(_ context.Context, productID, color, size string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := stockKey{productID, color, size}
	n, ok := s.stock[k]
	if !ok {
		return apperr.NotFound("no stock entry for %s/%s/%s", productID, color, size)
	}
	if n+delta < 0 {
		return apperr.InsufficientStock("%s/%s/%s has %d, requested %d", productID, color, size, n, -delta)
	}
	s.stock[k] = n + delta
	return nil
}
