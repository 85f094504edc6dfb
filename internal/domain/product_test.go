package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEffectiveDiscountTakesMaximum(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	productOffer := Offer{DiscountPct: decimal.NewFromInt(15), Active: true}
	category := &Category{ID: "c1", Active: true, Offer: Offer{DiscountPct: decimal.NewFromInt(20), Active: true, EndsAt: now.Add(time.Hour)}}

	tests := []struct {
		name     string
		variant  decimal.Decimal
		offer    Offer
		category *Category
		want     string
	}{
		{name: "variant only", variant: decimal.NewFromInt(10), want: "10"},
		{name: "product offer wins", variant: decimal.NewFromInt(10), offer: productOffer, want: "15"},
		{name: "category offer wins", variant: decimal.NewFromInt(10), offer: productOffer, category: category, want: "20"},
		{name: "inactive category ignored", variant: decimal.NewFromInt(10), offer: productOffer, category: &Category{Offer: category.Offer}, want: "15"},
		{name: "expired offer ignored", variant: decimal.NewFromInt(5), offer: Offer{DiscountPct: decimal.NewFromInt(40), Active: true, EndsAt: now}, want: "5"},
		{name: "future offer ignored", variant: decimal.Zero, offer: Offer{DiscountPct: decimal.NewFromInt(40), Active: true, StartsAt: now.Add(time.Minute)}, want: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EffectiveDiscount(tc.variant, tc.offer, tc.category, now)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("discount = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFinalPriceRounding(t *testing.T) {
	tests := []struct {
		price int64
		pct   string
		want  int64
	}{
		{price: 100000, pct: "0", want: 100000},
		{price: 100000, pct: "12.5", want: 87500},
		{price: 999, pct: "33", want: 669},  // 669.33
		{price: 1001, pct: "50", want: 501}, // 500.5 округляется от нуля
		{price: 500, pct: "100", want: 0},
	}
	for _, tc := range tests {
		if got := FinalPrice(tc.price, decimal.RequireFromString(tc.pct)); got != tc.want {
			t.Errorf("FinalPrice(%d, %s) = %d, want %d", tc.price, tc.pct, got, tc.want)
		}
	}
}

func TestProductReprice(t *testing.T) {
	now := time.Now().UTC()
	p := Product{
		Name:  "Linen shirt",
		Offer: Offer{DiscountPct: decimal.NewFromInt(10), Active: true},
		Variants: []Variant{
			{ID: "s", PriceMinor: 2000, DiscountPct: decimal.NewFromInt(5), Stock: 3},
			{ID: "m", PriceMinor: 2000, DiscountPct: decimal.NewFromInt(25), Stock: 1},
		},
	}
	if !p.Reprice(nil, now) {
		t.Fatal("expected prices to change")
	}
	if p.Variants[0].FinalPriceMinor != 1800 || p.Variants[1].FinalPriceMinor != 1500 {
		t.Fatalf("unexpected final prices %d, %d", p.Variants[0].FinalPriceMinor, p.Variants[1].FinalPriceMinor)
	}
	if p.Reprice(nil, now) {
		t.Fatal("second reprice should be a no-op")
	}
}

func TestProductValidate(t *testing.T) {
	p := Product{Name: " ", Variants: []Variant{{ID: "v", PriceMinor: -1}}}
	if errs := p.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}
