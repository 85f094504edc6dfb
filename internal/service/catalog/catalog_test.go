package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func adminCtx() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin})
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func pct(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateProduct_AppliesMaxDiscount(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.Repositories().Categories.Create(context.Background(), domain.Category{
		ID: "kurtas", Name: "Kurtas", Active: true,
		Offer: domain.Offer{DiscountPct: pct("25"), Active: true},
	}))

	product, err := svc.CreateProduct(adminCtx(), domain.Product{
		Name:       "  Linen kurta ",
		CategoryID: "kurtas",
		Offer:      domain.Offer{DiscountPct: pct("10"), Active: true, EndsAt: fixedNow.Add(time.Hour)},
		Variants: []domain.Variant{
			{Size: "S", PriceMinor: 1999, DiscountPct: pct("5"), Stock: 3},
			{Size: "M", PriceMinor: 1999, DiscountPct: pct("40"), Stock: 3},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, product.ID)
	assert.Equal(t, "Linen kurta", product.Name)
	// 1999 * 0.75 = 1499.25 -> 1499; 1999 * 0.6 = 1199.4 -> 1199
	assert.Equal(t, int64(1499), product.Variants[0].FinalPriceMinor)
	assert.Equal(t, int64(1199), product.Variants[1].FinalPriceMinor)

	stored, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1499), stored.Variants[0].FinalPriceMinor)
}

func TestCreateProduct_MissingCategoryPricesWithoutIt(t *testing.T) {
	svc, _ := newService(t)

	product, err := svc.CreateProduct(adminCtx(), domain.Product{
		Name:       "Scarf",
		CategoryID: "unknown",
		Variants:   []domain.Variant{{Size: "OS", PriceMinor: 500, Stock: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), product.Variants[0].FinalPriceMinor)
}

func TestCreateProduct_Guards(t *testing.T) {
	svc, _ := newService(t)
	valid := domain.Product{Name: "Scarf", Variants: []domain.Variant{{Size: "OS", PriceMinor: 500, Stock: 1}}}

	_, err := svc.CreateProduct(context.Background(), valid)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	customer := domain.WithPrincipal(context.Background(), domain.Principal{UserID: "u1", Role: domain.RoleCustomer})
	_, err = svc.CreateProduct(customer, valid)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateProduct(adminCtx(), domain.Product{Name: " "})
	assert.ErrorIs(t, err, domain.ErrProductNameRequired)
	assert.ErrorIs(t, err, domain.ErrVariantsRequired)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestSetBlockedAndReprice(t *testing.T) {
	svc, store := newService(t)
	product, err := svc.CreateProduct(adminCtx(), domain.Product{
		Name:       "Dupatta",
		CategoryID: "sale",
		Variants:   []domain.Variant{{Size: "OS", PriceMinor: 1000, Stock: 2}},
	})
	require.NoError(t, err)

	blocked, err := svc.SetBlocked(adminCtx(), product.ID, true)
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)

	_, changed, err := svc.Reprice(adminCtx(), product.ID)
	require.NoError(t, err)
	assert.False(t, changed, "nothing changed since creation")

	// Появилась категория с предложением: цена должна пересчитаться.
	require.NoError(t, store.Repositories().Categories.Create(context.Background(), domain.Category{
		ID: "sale", Name: "Sale", Active: true,
		Offer: domain.Offer{DiscountPct: pct("12.5"), Active: true},
	}))
	repriced, changed, err := svc.Reprice(adminCtx(), product.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(875), repriced.Variants[0].FinalPriceMinor)

	_, _, err = svc.Reprice(adminCtx(), "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
