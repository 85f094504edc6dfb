package coupon

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Quote: результат проверки купона для корзины.
type Quote struct {
	Code          string `json:"code"`
	DiscountMinor int64  `json:"discount"`
	TotalMinor    int64  `json:"finalAmount"`
}

// Service проверяет и заводит купоны.
type Service struct {
	uow    domain.UnitOfWork
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис купонов.
func NewService(uow domain.UnitOfWork, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "coupon")
	}
	return &Service{uow: uow, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Validate считает скидку для пользователя, ничего не погашая.
func (s *Service) Validate(ctx context.Context, code, userID string, cartTotalMinor int64) (Quote, error) {
	if userID == "" {
		return Quote{}, domain.ErrUserRequired
	}
	return Quoted(ctx, s.uow.Repositories().Coupons, code, userID, cartTotalMinor, s.now())
}

// Create заводит купон (только администратор).
func (s *Service) Create(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	principal, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return domain.Coupon{}, domain.ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return domain.Coupon{}, domain.ErrForbidden
	}

	coupon.Code = domain.NormalizeCouponCode(coupon.Code)
	if errs := coupon.Validate(); len(errs) > 0 {
		return domain.Coupon{}, errors.Join(errs...)
	}
	coupon.CreatedAt = s.now()

	if err := s.uow.Repositories().Coupons.Create(ctx, coupon); err != nil {
		return domain.Coupon{}, err
	}
	s.logger.WithFields(log.Fields{
		"code":         coupon.Code,
		"discount_pct": coupon.DiscountPct.String(),
	}).Info("coupon created")
	return coupon, nil
}

// Quoted проверяет купон через переданный репозиторий. Оформление заказа вызывает его
// внутри своей транзакции перед Redeem.
func Quoted(ctx context.Context, coupons domain.CouponRepository, code, userID string, cartTotalMinor int64, now time.Time) (Quote, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return Quote{}, domain.NewValidationError("couponCode", "is required")
	}
	if cartTotalMinor < 0 {
		return Quote{}, domain.ErrAmountNegative
	}

	c, err := coupons.Get(ctx, code)
	if err != nil {
		return Quote{}, err
	}
	discount, err := c.Discount(cartTotalMinor, now)
	if err != nil {
		return Quote{}, err
	}
	used, err := coupons.UsedBy(ctx, code, userID)
	if err != nil {
		return Quote{}, err
	}
	if used {
		return Quote{}, domain.ErrCouponAlreadyUsed
	}

	return Quote{Code: code, DiscountMinor: discount, TotalMinor: cartTotalMinor - discount}, nil
}
