package postgres

import (
	"context"

	"github.com/ariefcatur/go-apparel-checkout/internal/catalog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DemoProducts is a small catalog for local runs.
func DemoProducts() []catalog.Product {
	sizes := func(stock ...int) []catalog.SizeEntry {
		names := []string{"S", "M", "L", "XL"}
		out := make([]catalog.SizeEntry, 0, len(stock))
		for i, n := range stock {
			out = append(out, catalog.SizeEntry{Size: names[i], Stock: n})
		}
		return out
	}
	return []catalog.Product{
		{
			ID:   "classic-tee",
			Name: "Classic Tee",
			Variants: []catalog.ColorVariant{
				{Color: "Blue", Price: decimal.NewFromInt(25), Sizes: sizes(10, 3, 5, 0)},
				{Color: "White", Price: decimal.NewFromInt(25), Sizes: sizes(8, 8, 8, 2)},
			},
		},
		{
			ID:   "zip-hoodie",
			Name: "Zip Hoodie",
			Variants: []catalog.ColorVariant{
				{Color: "Black", Price: decimal.RequireFromString("59.90"), Sizes: sizes(4, 6, 6, 1)},
			},
		},
	}
}

// SeedDemo loads DemoProducts into an empty catalog and leaves a populated one alone.
func SeedDemo(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	repo := &catalog.Repo{DB: pool}
	for _, p := range DemoProducts() {
		if err := repo.Save(ctx, p); err != nil {
			return false, err
		}
	}
	return true, nil
}
