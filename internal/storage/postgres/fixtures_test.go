package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func sampleProduct(id string, stock int32) domain.Product {
	now := time.Now().UTC().Round(time.Microsecond)
	return domain.Product{
		ID:         id,
		Name:       "Shirt " + id,
		CategoryID: "cat-shirts",
		Offer: domain.Offer{
			DiscountPct: decimal.NewFromInt(5),
			StartsAt:    now.Add(-time.Hour),
			EndsAt:      now.Add(time.Hour),
			Active:      true,
		},
		Variants: []domain.Variant{
			{ID: "v-s", Size: "S", PriceMinor: 100000, DiscountPct: decimal.Zero, FinalPriceMinor: 95000, Stock: stock},
			{ID: "v-m", Size: "M", PriceMinor: 120000, DiscountPct: decimal.NewFromFloat(12.5), FinalPriceMinor: 105000, Stock: stock},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleOrder(id, userID, number string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		UserID:        userID,
		Number:        number,
		PaymentMethod: domain.PaymentMethodOnline,
		Currency:      "INR",
		AmountMinor:   300,
		Items: []domain.OrderItem{
			{ID: id + "-item-1", ProductID: "p-1", VariantID: "v-s", Qty: 2, PriceMinor: 100, CreatedAt: createdAt},
			{ID: id + "-item-2", ProductID: "p-1", VariantID: "v-m", Qty: 1, PriceMinor: 100, CreatedAt: createdAt},
		},
		Shipping: domain.ShippingAddress{
			FullName:   "Asha Rao",
			Phone:      "+911234567890",
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560001",
			Country:    "IN",
		},
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func sampleWalletTxn(id, userID string, typ domain.TransactionType, amount int64) domain.WalletTransaction {
	return domain.WalletTransaction{
		ID:          id,
		UserID:      userID,
		Type:        typ,
		AmountMinor: amount,
		Description: "test " + string(typ),
		Status:      domain.TransactionCompleted,
		CreatedAt:   time.Now().UTC().Round(time.Microsecond),
	}
}
