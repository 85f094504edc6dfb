package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type failedPaymentRepository struct{ access }

func (r *failedPaymentRepository) Create(_ context.Context, record domain.FailedPayment) error {
	return r.write(func(st *state) error {
		st.failed = append(st.failed, cloneFailedPayment(record))
		return nil
	})
}

func (r *failedPaymentRepository) ListByOrder(_ context.Context, orderID string) ([]domain.FailedPayment, error) {
	var result []domain.FailedPayment
	err := r.read(func(st *state) error {
		for _, rec := range st.failed {
			if rec.OrderID == orderID {
				result = append(result, cloneFailedPayment(rec))
			}
		}
		return nil
	})
	return result, err
}

func (r *failedPaymentRepository) ResolveByGatewayOrder(_ context.Context, gatewayOrderID string, at time.Time) (int, error) {
	resolved := 0
	err := r.write(func(st *state) error {
		for i := range st.failed {
			rec := &st.failed[i]
			if rec.GatewayOrderID != gatewayOrderID || rec.Resolved {
				continue
			}
			rec.Resolved = true
			rec.ResolvedAt = at
			resolved++
		}
		return nil
	})
	return resolved, err
}

type redemption struct {
	orderID string
	at      time.Time
}

type couponRepository struct{ access }

func (r *couponRepository) Create(_ context.Context, coupon domain.Coupon) error {
	return r.write(func(st *state) error {
		if _, exists := st.coupons[coupon.Code]; exists {
			return domain.ErrCouponExists
		}
		st.coupons[coupon.Code] = coupon
		return nil
	})
}

func (r *couponRepository) Get(_ context.Context, code string) (domain.Coupon, error) {
	var coupon domain.Coupon
	err := r.read(func(st *state) error {
		c, ok := st.coupons[code]
		if !ok {
			return domain.ErrCouponNotFound
		}
		coupon = c
		return nil
	})
	return coupon, err
}

func (r *couponRepository) UsedBy(_ context.Context, code, userID string) (bool, error) {
	var used bool
	err := r.read(func(st *state) error {
		_, used = st.redemptions[redemptionKey(code, userID)]
		return nil
	})
	return used, err
}

func (r *couponRepository) Redeem(_ context.Context, code, userID, orderID string, at time.Time) error {
	return r.write(func(st *state) error {
		if _, ok := st.coupons[code]; !ok {
			return domain.ErrCouponNotFound
		}
		key := redemptionKey(code, userID)
		if _, used := st.redemptions[key]; used {
			return domain.ErrCouponAlreadyUsed
		}
		st.redemptions[key] = redemption{orderID: orderID, at: at}
		return nil
	})
}

func (r *couponRepository) Release(_ context.Context, code, userID, orderID string) error {
	return r.write(func(st *state) error {
		key := redemptionKey(code, userID)
		if red, ok := st.redemptions[key]; ok && red.orderID == orderID {
			delete(st.redemptions, key)
		}
		return nil
	})
}

func redemptionKey(code, userID string) string {
	return code + "|" + userID
}

var (
	_ domain.FailedPaymentRepository = (*failedPaymentRepository)(nil)
	_ domain.CouponRepository        = (*couponRepository)(nil)
)
