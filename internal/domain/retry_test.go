package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRetryTokenCheck(t *testing.T) {
	failedAt := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	token := NewRetryToken(failedAt, 11*time.Minute, 2)

	tests := []struct {
		name  string
		token RetryToken
		now   time.Time
		want  error
	}{
		{name: "inside window", token: token, now: failedAt.Add(5 * time.Minute), want: nil},
		{name: "one nanosecond before expiry", token: token, now: token.ExpiresAt.Add(-time.Nanosecond), want: nil},
		{name: "exactly at expiry", token: token, now: token.ExpiresAt, want: ErrRetryWindowExpired},
		{name: "twelve minutes later", token: token, now: failedAt.Add(12 * time.Minute), want: ErrRetryWindowExpired},
		{name: "no attempts left", token: NewRetryToken(failedAt, 11*time.Minute, 0), now: failedAt, want: ErrRetryAttemptsExhausted},
		{name: "zero token", token: RetryToken{}, now: failedAt, want: ErrRetryNotAvailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.token.Check(tc.now)
			if !errors.Is(err, tc.want) || (tc.want == nil && err != nil) {
				t.Fatalf("Check() = %v, want %v", err, tc.want)
			}
			if tc.token.Valid(tc.now) != (tc.want == nil) {
				t.Fatalf("Valid() disagrees with Check()")
			}
		})
	}
}

func TestRetryTokenRemaining(t *testing.T) {
	failedAt := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	token := NewRetryToken(failedAt, 11*time.Minute, 1)

	if got := token.Remaining(failedAt.Add(time.Minute)); got != 10*time.Minute {
		t.Fatalf("remaining = %s, want 10m", got)
	}
	if got := token.Remaining(failedAt.Add(time.Hour)); got != 0 {
		t.Fatalf("remaining after expiry = %s, want 0", got)
	}
}
