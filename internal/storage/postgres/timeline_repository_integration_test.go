package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Repositories().Timeline
	ctx := context.Background()

	createdAt := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)

	if err := repo.Append(ctx, domain.TimelineEvent{
		OrderID:  "order-t",
		Type:     domain.EventOrderPlaced,
		Reason:   "placed",
		Occurred: createdAt,
	}); err != nil {
		t.Fatalf("append placed: %v", err)
	}
	// Нулевое время подставляется при записи.
	if err := repo.Append(ctx, domain.TimelineEvent{
		OrderID: "order-t",
		Type:    domain.EventOrderCancelled,
		Reason:  "customer request",
	}); err != nil {
		t.Fatalf("append cancelled: %v", err)
	}

	events, err := repo.List(ctx, "order-t")
	if err != nil {
		t.Fatalf("list timeline events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(events))
	}
	if events[0].Type != domain.EventOrderPlaced || events[1].Type != domain.EventOrderCancelled {
		t.Fatalf("events must be ordered by occurrence: %+v", events)
	}
	if events[1].Occurred.IsZero() {
		t.Fatal("expected occurred to be filled")
	}

	empty, err := repo.List(ctx, "unknown")
	if err != nil {
		t.Fatalf("list unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no events, got %d", len(empty))
	}
}
