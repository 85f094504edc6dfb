package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	q querier
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return atomically(ctx, r.q, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO products (
				id, name, category_id, is_blocked,
				offer_pct, offer_starts_at, offer_ends_at, offer_active,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			product.ID, product.Name, product.CategoryID, product.Blocked,
			product.Offer.DiscountPct, nullTime(product.Offer.StartsAt), nullTime(product.Offer.EndsAt), product.Offer.Active,
			product.CreatedAt, product.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrProductExists
			}
			return fmt.Errorf("insert product: %w", err)
		}

		for i, v := range product.Variants {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO product_variants (
					product_id, id, position, size, price_minor, discount_pct, final_price_minor, stock
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`,
				product.ID, v.ID, i, v.Size, v.PriceMinor, v.DiscountPct, v.FinalPriceMinor, v.Stock,
			); err != nil {
				return fmt.Errorf("insert product variant: %w", err)
			}
		}
		return nil
	})
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		product     domain.Product
		offerStarts sql.NullTime
		offerEnds   sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, category_id, is_blocked,
		       offer_pct, offer_starts_at, offer_ends_at, offer_active,
		       created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.CategoryID, &product.Blocked,
		&product.Offer.DiscountPct, &offerStarts, &offerEnds, &product.Offer.Active,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	product.Offer.StartsAt = timeOrZero(offerStarts)
	product.Offer.EndsAt = timeOrZero(offerEnds)

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, size, price_minor, discount_pct, final_price_minor, stock
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("load product variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.Size, &v.PriceMinor, &v.DiscountPct, &v.FinalPriceMinor, &v.Stock); err != nil {
			return domain.Product{}, fmt.Errorf("scan product variant: %w", err)
		}
		product.Variants = append(product.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("iterate product variants: %w", err)
	}

	return product, nil
}

func (r *productRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products SET is_blocked = $2, updated_at = $3 WHERE id = $1
	`, id, blocked, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update product blocked flag: %w", err)
	}
	return expectAffected(res, domain.ErrProductNotFound)
}

func (r *productRepository) UpdatePrices(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return atomically(ctx, r.q, func(q querier) error {
		res, err := q.ExecContext(ctx, `UPDATE products SET updated_at = $2 WHERE id = $1`, product.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("touch product: %w", err)
		}
		if err := expectAffected(res, domain.ErrProductNotFound); err != nil {
			return err
		}
		for _, v := range product.Variants {
			if _, err := q.ExecContext(ctx, `
				UPDATE product_variants SET final_price_minor = $3
				WHERE product_id = $1 AND id = $2
			`, product.ID, v.ID, v.FinalPriceMinor); err != nil {
				return fmt.Errorf("update variant final price: %w", err)
			}
		}
		return nil
	})
}

// DecrementStock: одна условная операция: строка меняется только при достаточном остатке.
func (r *productRepository) DecrementStock(ctx context.Context, productID, variantID string, qty int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = stock - $3
		WHERE product_id = $1
		  AND id = $2
		  AND stock >= $3
	`, productID, variantID, qty)
	if err != nil {
		return fmt.Errorf("decrement variant stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	available, err := r.currentStock(ctx, productID, variantID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		VariantID: variantID,
		Requested: qty,
		Available: available,
	}
}

func (r *productRepository) IncrementStock(ctx context.Context, productID, variantID string, qty int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = stock + $3
		WHERE product_id = $1
		  AND id = $2
	`, productID, variantID, qty)
	if err != nil {
		return fmt.Errorf("increment variant stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	_, err = r.currentStock(ctx, productID, variantID)
	if err == nil {
		return fmt.Errorf("increment variant stock: no rows updated")
	}
	return err
}

// currentStock различает отсутствие товара и отсутствие варианта.
func (r *productRepository) currentStock(ctx context.Context, productID, variantID string) (int32, error) {
	var stock int32
	err := r.q.QueryRowContext(ctx, `
		SELECT stock FROM product_variants WHERE product_id = $1 AND id = $2
	`, productID, variantID).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("select variant stock: %w", err)
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check product exists: %w", err)
	}
	if !exists {
		return 0, domain.ErrProductNotFound
	}
	return 0, domain.ErrVariantNotFound
}

type categoryRepository struct {
	q querier
}

func (r *categoryRepository) Create(ctx context.Context, category domain.Category) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (id, name, is_active, offer_pct, offer_starts_at, offer_ends_at, offer_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		category.ID, category.Name, category.Active,
		category.Offer.DiscountPct, nullTime(category.Offer.StartsAt), nullTime(category.Offer.EndsAt), category.Offer.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCategoryExists
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, id string) (domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		category domain.Category
		starts   sql.NullTime
		ends     sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, is_active, offer_pct, offer_starts_at, offer_ends_at, offer_active
		FROM categories
		WHERE id = $1
	`, id).Scan(
		&category.ID, &category.Name, &category.Active,
		&category.Offer.DiscountPct, &starts, &ends, &category.Offer.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, domain.ErrCategoryNotFound
		}
		return domain.Category{}, fmt.Errorf("select category: %w", err)
	}
	category.Offer.StartsAt = timeOrZero(starts)
	category.Offer.EndsAt = timeOrZero(ends)
	return category, nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var (
	_ domain.ProductRepository  = (*productRepository)(nil)
	_ domain.CategoryRepository = (*categoryRepository)(nil)
)
