package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo reads products from Postgres. Prices are stored in minor units.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	p := Product{ID: id}
	err := r.DB.QueryRow(ctx, `SELECT name FROM products WHERE id=$1`, id).Scan(&p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT v.color, v.price_minor, v.images, s.size, s.stock, s.measurements
		FROM color_variants v
		LEFT JOIN size_entries s ON s.product_id = v.product_id AND s.color = v.color
		WHERE v.product_id = $1
		ORDER BY v.position, v.color, s.position, s.size`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			color    string
			price    int64
			images   []string
			size     *string
			stock    *int
			measures []byte
		)
		if err := rows.Scan(&color, &price, &images, &size, &stock, &measures); err != nil {
			return nil, err
		}
		n := len(p.Variants)
		if n == 0 || p.Variants[n-1].Color != color {
			p.Variants = append(p.Variants, ColorVariant{
				Color:  color,
				Price:  money.FromMinor(price),
				Images: images,
			})
			n++
		}
		if size == nil {
			continue
		}
		entry := SizeEntry{Size: *size, Stock: *stock}
		if len(measures) > 0 {
			if err := json.Unmarshal(measures, &entry.Measurements); err != nil {
				return nil, err
			}
		}
		p.Variants[n-1].Sizes = append(p.Variants[n-1].Sizes, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save upserts a product with its variants and size entries in one tx.
// Stock of existing size entries is overwritten.
func (r *Repo) Save(ctx context.Context, p Product) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO products(id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, p.ID, p.Name); err != nil {
		return err
	}
	for vi, v := range p.Variants {
		images := v.Images
		if images == nil {
			images = []string{}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO color_variants(product_id, color, position, price_minor, images)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (product_id, color) DO UPDATE
			SET position = EXCLUDED.position, price_minor = EXCLUDED.price_minor, images = EXCLUDED.images`,
			p.ID, v.Color, vi, money.Minor(v.Price), images); err != nil {
			return err
		}
		for si, s := range v.Sizes {
			if s.Stock < 0 {
				return apperr.Validation("negative stock for %s/%s/%s", p.ID, v.Color, s.Size)
			}
			measures, err := json.Marshal(s.Measurements)
			if err != nil {
				return err
			}
			if s.Measurements == nil {
				measures = []byte(`{}`)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO size_entries(product_id, color, size, position, stock, measurements)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (product_id, color, size) DO UPDATE
				SET position = EXCLUDED.position, stock = EXCLUDED.stock, measurements = EXCLUDED.measurements`,
				p.ID, v.Color, s.Size, si, s.Stock, measures); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}
