package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon: процентный купон с ограничением максимальной скидки.
type Coupon struct {
	Code             string
	DiscountPct      decimal.Decimal
	MaxDiscountMinor int64
	MinPurchaseMinor int64
	StartsAt         time.Time
	ExpiresAt        time.Time
	Active           bool
	CreatedAt        time.Time
}

// NormalizeCouponCode приводит код к каноническому виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate проверяет купон перед сохранением.
func (c *Coupon) Validate() []error {
	var errs []error
	if c.Code == "" || !c.DiscountPct.IsPositive() || c.DiscountPct.GreaterThan(hundred) {
		errs = append(errs, ErrCouponInvalid)
	}
	if c.MaxDiscountMinor < 0 || c.MinPurchaseMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(c.StartsAt) {
		errs = append(errs, ErrCouponInvalid)
	}
	return errs
}

// Discount считает скидку для корзины на сумму cartTotal.
// MaxDiscountMinor == 0 означает отсутствие потолка.
func (c *Coupon) Discount(cartTotal int64, now time.Time) (int64, error) {
	switch {
	case !c.Active:
		return 0, ErrCouponInactive
	case !c.StartsAt.IsZero() && now.Before(c.StartsAt):
		return 0, ErrCouponNotStarted
	case !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt):
		return 0, ErrCouponExpired
	case cartTotal < c.MinPurchaseMinor:
		return 0, ErrCouponMinPurchase
	}

	discount := decimal.NewFromInt(cartTotal).Mul(c.DiscountPct).Div(hundred).Round(0).IntPart()
	if c.MaxDiscountMinor > 0 && discount > c.MaxDiscountMinor {
		discount = c.MaxDiscountMinor
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	return discount, nil
}
