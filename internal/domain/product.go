package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Offer: процентная скидка с периодом действия (на товар или категорию).
type Offer struct {
	DiscountPct decimal.Decimal
	StartsAt    time.Time
	EndsAt      time.Time
	Active      bool
}

// ActiveAt сообщает, действует ли предложение в момент now.
// Пустые границы периода считаются открытыми.
func (o Offer) ActiveAt(now time.Time) bool {
	if !o.Active || !o.DiscountPct.IsPositive() {
		return false
	}
	if !o.StartsAt.IsZero() && now.Before(o.StartsAt) {
		return false
	}
	if !o.EndsAt.IsZero() && !now.Before(o.EndsAt) {
		return false
	}
	return true
}

// Variant: покупаемый размер/конфигурация товара со своей ценой и остатком.
type Variant struct {
	ID              string
	Size            string
	PriceMinor      int64
	DiscountPct     decimal.Decimal
	FinalPriceMinor int64
	Stock           int32
}

// Category: категория каталога. Здесь нужна только ради её предложения.
type Category struct {
	ID     string
	Name   string
	Active bool
	Offer  Offer
}

// Product: товар каталога со встроенными вариантами.
type Product struct {
	ID         string
	Name       string
	CategoryID string
	Blocked    bool
	Offer      Offer
	Variants   []Variant
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Variant ищет вариант по идентификатору.
func (p *Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Validate проверяет товар перед сохранением.
func (p *Product) Validate() []error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if len(p.Variants) == 0 {
		errs = append(errs, ErrVariantsRequired)
	}
	for _, v := range p.Variants {
		if v.PriceMinor < 0 || v.Stock < 0 || !validPct(v.DiscountPct) {
			errs = append(errs, ErrVariantInvalid)
			break
		}
	}
	if !validPct(p.Offer.DiscountPct) {
		errs = append(errs, ErrVariantInvalid)
	}
	return errs
}

func validPct(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}

// EffectiveDiscount выбирает наибольшую из применимых скидок: варианта,
// предложения товара и предложения категории. Скидки не складываются.
func EffectiveDiscount(variantPct decimal.Decimal, productOffer Offer, category *Category, now time.Time) decimal.Decimal {
	best := decimal.Zero
	if validPct(variantPct) {
		best = variantPct
	}
	if productOffer.ActiveAt(now) {
		best = decimal.Max(best, productOffer.DiscountPct)
	}
	if category != nil && category.Active && category.Offer.ActiveAt(now) {
		best = decimal.Max(best, category.Offer.DiscountPct)
	}
	if best.GreaterThan(hundred) {
		return hundred
	}
	return best
}

// FinalPrice применяет процент скидки к цене и округляет до минимальной единицы.
func FinalPrice(priceMinor int64, discountPct decimal.Decimal) int64 {
	return decimal.NewFromInt(priceMinor).
		Mul(hundred.Sub(discountPct)).
		Div(hundred).
		Round(0).
		IntPart()
}

// Reprice пересчитывает итоговые цены всех вариантов и сообщает, изменилось ли что-то.
func (p *Product) Reprice(category *Category, now time.Time) bool {
	changed := false
	for i := range p.Variants {
		v := &p.Variants[i]
		final := FinalPrice(v.PriceMinor, EffectiveDiscount(v.DiscountPct, p.Offer, category, now))
		if final != v.FinalPriceMinor {
			v.FinalPriceMinor = final
			changed = true
		}
	}
	return changed
}
