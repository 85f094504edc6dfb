package domain

import "time"

// RetryToken: право на повторную оплату: истекает по времени и по числу попыток.
// Нулевое значение означает, что повтор недоступен.
type RetryToken struct {
	ExpiresAt         time.Time
	AttemptsRemaining int
}

// NewRetryToken открывает окно длиной window от момента неудачи.
func NewRetryToken(failedAt time.Time, window time.Duration, attemptsRemaining int) RetryToken {
	return RetryToken{ExpiresAt: failedAt.Add(window), AttemptsRemaining: attemptsRemaining}
}

// IsZero сообщает, что токен не выдавался.
func (t RetryToken) IsZero() bool {
	return t.ExpiresAt.IsZero()
}

// Expired истинно в момент истечения и после него.
func (t RetryToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Check возвращает причину, по которой повтор запрещён, или nil.
func (t RetryToken) Check(now time.Time) error {
	switch {
	case t.IsZero():
		return ErrRetryNotAvailable
	case t.Expired(now):
		return ErrRetryWindowExpired
	case t.AttemptsRemaining <= 0:
		return ErrRetryAttemptsExhausted
	default:
		return nil
	}
}

// Valid: удобная обёртка над Check.
func (t RetryToken) Valid(now time.Time) bool {
	return t.Check(now) == nil
}

// Remaining возвращает оставшееся время окна (0 после истечения).
func (t RetryToken) Remaining(now time.Time) time.Duration {
	if t.IsZero() || t.Expired(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}
