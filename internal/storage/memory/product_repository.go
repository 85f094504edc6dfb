package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct{ access }

func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	return r.write(func(st *state) error {
		if _, exists := st.products[product.ID]; exists {
			return domain.ErrProductExists
		}
		st.products[product.ID] = cloneProduct(product)
		return nil
	})
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := r.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		product = cloneProduct(p)
		return nil
	})
	return product, err
}

func (r *productRepository) SetBlocked(_ context.Context, id string, blocked bool) error {
	return r.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		p.Blocked = blocked
		p.UpdatedAt = time.Now().UTC()
		st.products[id] = p
		return nil
	})
}

// UpdatePrices переносит только итоговые цены: остатки могли измениться параллельно.
func (r *productRepository) UpdatePrices(_ context.Context, product domain.Product) error {
	return r.write(func(st *state) error {
		current, ok := st.products[product.ID]
		if !ok {
			return domain.ErrProductNotFound
		}
		current = cloneProduct(current)
		for _, v := range product.Variants {
			for i := range current.Variants {
				if current.Variants[i].ID == v.ID {
					current.Variants[i].FinalPriceMinor = v.FinalPriceMinor
				}
			}
		}
		current.UpdatedAt = time.Now().UTC()
		st.products[product.ID] = current
		return nil
	})
}

func (r *productRepository) DecrementStock(_ context.Context, productID, variantID string, qty int32) error {
	return r.write(func(st *state) error {
		p, idx, err := findVariant(st, productID, variantID)
		if err != nil {
			return err
		}
		if p.Variants[idx].Stock < qty {
			return &domain.InsufficientStockError{
				ProductID: productID,
				VariantID: variantID,
				Requested: qty,
				Available: p.Variants[idx].Stock,
			}
		}
		p.Variants[idx].Stock -= qty
		st.products[productID] = p
		return nil
	})
}

func (r *productRepository) IncrementStock(_ context.Context, productID, variantID string, qty int32) error {
	return r.write(func(st *state) error {
		p, idx, err := findVariant(st, productID, variantID)
		if err != nil {
			return err
		}
		p.Variants[idx].Stock += qty
		st.products[productID] = p
		return nil
	})
}

// findVariant возвращает копию товара и индекс варианта в ней.
func findVariant(st *state, productID, variantID string) (domain.Product, int, error) {
	p, ok := st.products[productID]
	if !ok {
		return domain.Product{}, 0, domain.ErrProductNotFound
	}
	p = cloneProduct(p)
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return p, i, nil
		}
	}
	return domain.Product{}, 0, domain.ErrVariantNotFound
}

type categoryRepository struct{ access }

func (r *categoryRepository) Create(_ context.Context, category domain.Category) error {
	return r.write(func(st *state) error {
		if _, exists := st.categories[category.ID]; exists {
			return domain.ErrCategoryExists
		}
		st.categories[category.ID] = category
		return nil
	})
}

func (r *categoryRepository) Get(_ context.Context, id string) (domain.Category, error) {
	var category domain.Category
	err := r.read(func(st *state) error {
		c, ok := st.categories[id]
		if !ok {
			return domain.ErrCategoryNotFound
		}
		category = c
		return nil
	})
	return category, err
}

var (
	_ domain.ProductRepository  = (*productRepository)(nil)
	_ domain.CategoryRepository = (*categoryRepository)(nil)
)
