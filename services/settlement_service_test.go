package services

import (
	"context"
	"testing"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
)

func TestSettlementRunReleasesEligibleEarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID := uuid.New()
	now := nowUTC().Truncate(time.Second)
	f.settlement.now = func() time.Time { return now }

	due := f.event(t, organizerID, 10000, "HTG", models.SettlementPending, now.Add(-time.Hour))
	future := f.event(t, organizerID, 10000, "HTG", models.SettlementPending, now.Add(24*time.Hour))
	lockedDue := f.event(t, organizerID, 10000, "HTG", models.SettlementLocked, now.Add(-time.Hour))
	lockedEmpty := f.event(t, organizerID, 10000, "HTG", models.SettlementLocked, now.Add(-time.Hour))
	f.db.Model(&models.EventEarnings{}).Where("event_id = ?", lockedEmpty.EventID).
		Updates(map[string]interface{}{"withdrawn_amount": 10000, "available_to_withdraw": 0})

	report, err := f.settlement.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Released != 1 || report.Unlocked != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	expect := map[uuid.UUID]models.SettlementStatus{
		due.EventID:         models.SettlementReady,
		future.EventID:      models.SettlementPending,
		lockedDue.EventID:   models.SettlementReady,
		lockedEmpty.EventID: models.SettlementLocked,
	}
	for id, want := range expect {
		if got := f.reload(t, id).SettlementStatus; got != want {
			t.Errorf("event %s: status %s, want %s", id, got, want)
		}
	}

	again, err := f.settlement.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Released != 0 || again.Unlocked != 0 {
		t.Fatalf("second run must be a no-op, got %+v", again)
	}
}

func TestSettlementSkipsInconsistentRows(t *testing.T) {
	f := newFixture(t)
	now := nowUTC().Truncate(time.Second)
	f.settlement.now = func() time.Time { return now }

	broken := f.event(t, uuid.New(), 1000, "HTG", models.SettlementPending, now.Add(-time.Hour))
	f.db.Model(&models.EventEarnings{}).Where("event_id = ?", broken.EventID).
		Update("withdrawn_amount", 5000)

	report, err := f.settlement.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 1 || report.Released != 0 {
		t.Fatalf("expected the broken row to be skipped, got %+v", report)
	}
	if got := f.reload(t, broken.EventID).SettlementStatus; got != models.SettlementPending {
		t.Fatalf("broken row must stay pending, got %s", got)
	}
}

func TestSettlementBatchesLargeScans(t *testing.T) {
	f := newFixture(t)
	now := nowUTC().Truncate(time.Second)
	f.settlement.now = func() time.Time { return now }
	f.settlement.batchSize = 2

	for i := 0; i < 5; i++ {
		f.event(t, uuid.New(), 1000, "HTG", models.SettlementPending, now.Add(-time.Minute))
	}
	report, err := f.settlement.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Released != 5 {
		t.Fatalf("expected 5 released across batches, got %+v", report)
	}
}

func TestLockedEarningsReleasedAfterLockExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizerID := uuid.New()
	event := f.readyEvent(t, organizerID, 10000, "HTG")
	until := nowUTC().Add(48 * time.Hour).Truncate(time.Second)

	locked, err := f.earnings.LockEarnings(ctx, uuid.New(), event.EventID, until, "chargeback review")
	if err != nil {
		t.Fatalf("LockEarnings: %v", err)
	}
	if locked.SettlementStatus != models.SettlementLocked || locked.LockReason == nil {
		t.Fatalf("unexpected lock result %+v", locked)
	}

	f.settlement.now = func() time.Time { return until.Add(-time.Hour) }
	if report, _ := f.settlement.Run(ctx); report.Unlocked != 0 {
		t.Fatalf("lock must hold until its date, got %+v", report)
	}

	f.settlement.now = func() time.Time { return until.Add(time.Hour) }
	if report, _ := f.settlement.Run(ctx); report.Unlocked != 1 {
		t.Fatalf("expected the lock to be released, got %+v", report)
	}
	e := f.reload(t, event.EventID)
	if e.SettlementStatus != models.SettlementReady || e.LockReason != nil {
		t.Fatalf("expected ready without a lock reason, got %+v", e)
	}
}
