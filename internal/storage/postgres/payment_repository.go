package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type failedPaymentRepository struct {
	q querier
}

func (r *failedPaymentRepository) Create(ctx context.Context, record domain.FailedPayment) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	metadata := record.Error.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal failed payment metadata: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO failed_payments (
			id, order_id, gateway_order_id,
			error_code, error_description, error_source, error_step, error_reason,
			metadata, resolved, created_at, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		record.ID, record.OrderID, record.GatewayOrderID,
		record.Error.Code, record.Error.Description, record.Error.Source, record.Error.Step, record.Error.Reason,
		rawMetadata, record.Resolved, record.CreatedAt, nullTime(record.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert failed payment: %w", err)
	}
	return nil
}

func (r *failedPaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.FailedPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, gateway_order_id,
		       error_code, error_description, error_source, error_step, error_reason,
		       metadata, resolved, created_at, resolved_at
		FROM failed_payments
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list failed payments: %w", err)
	}
	defer rows.Close()

	var records []domain.FailedPayment
	for rows.Next() {
		var (
			rec        domain.FailedPayment
			metadata   []byte
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.GatewayOrderID,
			&rec.Error.Code, &rec.Error.Description, &rec.Error.Source, &rec.Error.Step, &rec.Error.Reason,
			&metadata, &rec.Resolved, &rec.CreatedAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed payment: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Error.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal failed payment metadata: %w", err)
			}
			if len(rec.Error.Metadata) == 0 {
				rec.Error.Metadata = nil
			}
		}
		rec.ResolvedAt = timeOrZero(resolvedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed payments: %w", err)
	}
	return records, nil
}

func (r *failedPaymentRepository) ResolveByGatewayOrder(ctx context.Context, gatewayOrderID string, at time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE failed_payments
		SET resolved = TRUE, resolved_at = $2
		WHERE gateway_order_id = $1
		  AND NOT resolved
	`, gatewayOrderID, at)
	if err != nil {
		return 0, fmt.Errorf("resolve failed payments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

type couponRepository struct {
	q querier
}

func (r *couponRepository) Create(ctx context.Context, coupon domain.Coupon) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO coupons (
			code, discount_pct, max_discount_minor, min_purchase_minor,
			starts_at, expires_at, is_active, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		coupon.Code, coupon.DiscountPct, coupon.MaxDiscountMinor, coupon.MinPurchaseMinor,
		nullTime(coupon.StartsAt), nullTime(coupon.ExpiresAt), coupon.Active, coupon.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCouponExists
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (r *couponRepository) Get(ctx context.Context, code string) (domain.Coupon, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		coupon  domain.Coupon
		starts  sql.NullTime
		expires sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT code, discount_pct, max_discount_minor, min_purchase_minor,
		       starts_at, expires_at, is_active, created_at
		FROM coupons
		WHERE code = $1
	`, code).Scan(
		&coupon.Code, &coupon.DiscountPct, &coupon.MaxDiscountMinor, &coupon.MinPurchaseMinor,
		&starts, &expires, &coupon.Active, &coupon.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Coupon{}, domain.ErrCouponNotFound
		}
		return domain.Coupon{}, fmt.Errorf("select coupon: %w", err)
	}
	coupon.StartsAt = timeOrZero(starts)
	coupon.ExpiresAt = timeOrZero(expires)
	return coupon, nil
}

func (r *couponRepository) UsedBy(ctx context.Context, code, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var used bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE code = $1 AND user_id = $2)
	`, code, userID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check coupon redemption: %w", err)
	}
	return used, nil
}

func (r *couponRepository) Redeem(ctx context.Context, code, userID, orderID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO coupon_redemptions (code, user_id, order_id, redeemed_at)
		VALUES ($1,$2,$3,$4)
	`, code, userID, orderID, at)
	if err != nil {
		switch pgErrorCode(err) {
		case "23505":
			return domain.ErrCouponAlreadyUsed
		case "23503":
			return domain.ErrCouponNotFound
		}
		return fmt.Errorf("insert coupon redemption: %w", err)
	}
	return nil
}

func (r *couponRepository) Release(ctx context.Context, code, userID, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.q.ExecContext(ctx, `
		DELETE FROM coupon_redemptions
		WHERE code = $1 AND user_id = $2 AND order_id = $3
	`, code, userID, orderID); err != nil {
		return fmt.Errorf("delete coupon redemption: %w", err)
	}
	return nil
}

var (
	_ domain.FailedPaymentRepository = (*failedPaymentRepository)(nil)
	_ domain.CouponRepository        = (*couponRepository)(nil)
)
