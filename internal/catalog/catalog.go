package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// SizeEntry is the only stock-bearing level of the catalog.
type SizeEntry struct {
	Size         string            `json:"size"`
	Stock        int               `json:"stock"`
	Measurements map[string]string `json:"measurements,omitempty"`
}

type ColorVariant struct {
	Color  string          `json:"color"`
	Price  decimal.Decimal `json:"price"`
	Images []string        `json:"images,omitempty"`
	Sizes  []SizeEntry     `json:"sizes"`
}

type Product struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Variants []ColorVariant `json:"color_variants"`
}

// Lookup is the read side of the catalog used at checkout.
// GetProduct fails with apperr NotFound for unknown ids.
type Lookup interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

func (p *Product) Variant(color string) (*ColorVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Color == color {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

func (v *ColorVariant) Size(size string) (*SizeEntry, bool) {
	for i := range v.Sizes {
		if v.Sizes[i].Size == size {
			return &v.Sizes[i], true
		}
	}
	return nil, false
}
